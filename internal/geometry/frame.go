package geometry

import "fmt"

// Frame is the fixed-schema geometry of one frame:
//
//	[0,478)   face landmarks
//	478       bounding box top-left
//	479       bounding box (width, height)
//	[480,486) keypoints: left eye, right eye, nose, mouth left, mouth right, mouth center
//
// All values are normalized. The zero Frame is the "no face" sentinel.
type Frame [NumPoints]Point

// Sentinel returns the all-zero geometry used for frames without a face.
func Sentinel() Frame {
	return Frame{}
}

// IsSentinel reports whether every point of f is exactly (0,0).
func (f *Frame) IsSentinel() bool {
	return *f == Frame{}
}

// Assemble concatenates landmarks, the bounding box and keypoints into a
// Frame. landmarks and keypoints must already be normalized; box is in pixels
// and is normalized against the frame size here.
func Assemble(landmarks []Point, box Box, keypoints []Point, width, height int) (Frame, error) {
	var f Frame
	if len(landmarks) != NumLandmarks {
		return f, fmt.Errorf("expected %d landmarks, got %d", NumLandmarks, len(landmarks))
	}
	if len(keypoints) != NumKeypoints {
		return f, fmt.Errorf("expected %d keypoints, got %d", NumKeypoints, len(keypoints))
	}
	if width <= 0 || height <= 0 {
		return f, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	copy(f[:NumLandmarks], landmarks)
	f[BoxOriginIndex], f[BoxSizeIndex] = box.Normalize(width, height)
	copy(f[KeypointIndex:], keypoints)
	return f, nil
}

// Landmarks returns the landmark section of f.
func (f *Frame) Landmarks() []Point {
	return f[:NumLandmarks]
}

// Landmark returns landmark i, or an error if i lies outside the landmark range.
func (f *Frame) Landmark(i int) (Point, error) {
	if i < 0 || i >= NumLandmarks {
		return Point{}, fmt.Errorf("landmark index %d out of range [0,%d)", i, NumLandmarks)
	}
	return f[i], nil
}

// Box returns the normalized bounding box origin and size.
func (f *Frame) Box() (origin, size Point) {
	return f[BoxOriginIndex], f[BoxSizeIndex]
}

// PixelBox returns the bounding box in pixels for a frame of the given size.
func (f *Frame) PixelBox(width, height int) Box {
	origin, size := f.Box()
	o := origin.Denormalize(width, height)
	s := size.Denormalize(width, height)
	return Box{X: o.X, Y: o.Y, Width: s.X, Height: s.Y}
}

// Keypoints returns the six detector keypoints.
func (f *Frame) Keypoints() []Point {
	return f[KeypointIndex:]
}

// Eyes returns the left and right eye keypoints.
func (f *Frame) Eyes() (left, right Point) {
	return f[LeftEyeIndex], f[RightEyeIndex]
}
