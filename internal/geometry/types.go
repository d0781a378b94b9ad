// Package geometry holds the per-frame facial geometry buffer shared by
// extraction, compositing and alignment.
//
// Two coordinate spaces exist and are kept apart by type: Point is
// normalized to [0,1] relative to the frame, PixelPoint is in absolute
// pixels. Conversion always goes through Denormalize / Normalize with an
// explicit frame size.
package geometry

import (
	"errors"
	"image"
	"math"
)

// Layout of a Frame.
const (
	NumLandmarks = 478
	NumKeypoints = 6
	NumPoints    = 486

	// BoxOriginIndex holds the normalized top-left corner of the bounding box.
	BoxOriginIndex = 478
	// BoxSizeIndex holds the normalized (width, height) of the bounding box.
	BoxSizeIndex = 479
	// KeypointIndex is the first detector keypoint.
	KeypointIndex = 480
)

// Keypoint indices into a Frame.
const (
	LeftEyeIndex     = KeypointIndex + iota // 480
	RightEyeIndex                           // 481
	NoseIndex                               // 482
	MouthLeftIndex                          // 483
	MouthRightIndex                         // 484
	MouthCenterIndex                        // 485
)

// ErrNoFaceDetected marks a frame for which either engine found no face.
// The frame's geometry is the all-zero sentinel.
var ErrNoFaceDetected = errors.New("no face detected")

// Point is a 2D point normalized to [0,1] image-relative coordinates.
type Point struct {
	X, Y float64
}

// PixelPoint is a 2D point in absolute pixel coordinates.
type PixelPoint struct {
	X, Y float64
}

// Denormalize maps p into pixel space for a frame of the given size.
func (p Point) Denormalize(width, height int) PixelPoint {
	return PixelPoint{X: p.X * float64(width), Y: p.Y * float64(height)}
}

// Pixel maps p into pixel space and truncates to integer pixel indices,
// the same conversion a polygon rasterizer is fed with.
func (p Point) Pixel(width, height int) image.Point {
	return p.Denormalize(width, height).Int()
}

// Normalize maps p into [0,1] space for a frame of the given size.
func (p PixelPoint) Normalize(width, height int) Point {
	return Point{X: p.X / float64(width), Y: p.Y / float64(height)}
}

// Int truncates p toward zero.
func (p PixelPoint) Int() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// Distance returns the Euclidean distance between two pixel points.
func Distance(a, b PixelPoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Box is a pixel-space bounding box given by its origin and size.
type Box struct {
	X, Y          float64 // top-left
	Width, Height float64
}

// Normalize divides the origin and size component-wise by the frame size,
// producing the two points stored at BoxOriginIndex and BoxSizeIndex.
func (b Box) Normalize(width, height int) (origin, size Point) {
	w, h := float64(width), float64(height)
	return Point{X: b.X / w, Y: b.Y / h}, Point{X: b.Width / w, Y: b.Height / h}
}
