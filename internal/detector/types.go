package detector

import "github.com/dudu/facegeom/internal/geometry"

// Point represents a 2D point in model or pixel space
type Point struct {
	X, Y float32
}

// BoundingBox represents a face bounding box in pixels
type BoundingBox struct {
	X1, Y1 float32 // top-left
	X2, Y2 float32 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float32 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float32 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float32 {
	return b.Width() * b.Height()
}

// Box converts to the origin+size form stored in the geometry buffer
func (b BoundingBox) Box() geometry.Box {
	return geometry.Box{
		X:      float64(b.X1),
		Y:      float64(b.Y1),
		Width:  float64(b.Width()),
		Height: float64(b.Height()),
	}
}

// Keypoints are the six coarse anchors of a detection, normalized to [0,1]
type Keypoints struct {
	LeftEye     geometry.Point // index 0
	RightEye    geometry.Point // index 1
	Nose        geometry.Point // index 2
	MouthLeft   geometry.Point // index 3
	MouthRight  geometry.Point // index 4
	MouthCenter geometry.Point // index 5
}

// AsSlice returns keypoints in geometry buffer order
func (k Keypoints) AsSlice() []geometry.Point {
	return []geometry.Point{
		k.LeftEye,
		k.RightEye,
		k.Nose,
		k.MouthLeft,
		k.MouthRight,
		k.MouthCenter,
	}
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox // pixels
	Keypoints   Keypoints   // normalized
	Score       float32
}

// Mesh is one set of 478 face landmarks, normalized to [0,1]
type Mesh [geometry.NumLandmarks]geometry.Point

// Bounds computes the tight normalized bounding box around all landmarks
func (m *Mesh) Bounds() (min, max geometry.Point) {
	min, max = m[0], m[0]
	for i := 1; i < len(m); i++ {
		if m[i].X < min.X {
			min.X = m[i].X
		}
		if m[i].X > max.X {
			max.X = m[i].X
		}
		if m[i].Y < min.Y {
			min.Y = m[i].Y
		}
		if m[i].Y > max.Y {
			max.Y = m[i].Y
		}
	}
	return min, max
}

// Points returns the landmarks as a slice
func (m *Mesh) Points() []geometry.Point {
	return m[:]
}
