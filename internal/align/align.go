// Package align levels a face by rotating the frame until the eyes are
// horizontal.
package align

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
)

// ErrDegenerateGeometry is returned when the eye triangle collapses and no
// rotation angle exists.
var ErrDegenerateGeometry = errors.New("degenerate geometry")

// Result holds the rotated image and the transform that produced it.
type Result struct {
	Image     gocv.Mat
	Transform Matrix
	Angle     float64 // degrees, before the direction is applied
	Direction int     // +1 or -1
}

// Close releases the rotated image.
func (r *Result) Close() error {
	return r.Image.Close()
}

// Align rotates img about its centre so that the eyes, given in pixels, lie
// on a horizontal line. The output has the size of img.
//
// For degenerate eyes the result holds an unrotated copy of img and the
// identity transform, and the error wraps ErrDegenerateGeometry.
func Align(img gocv.Mat, left, right geometry.PixelPoint) (Result, error) {
	if img.Empty() {
		return Result{Image: gocv.NewMat(), Transform: Identity()}, fmt.Errorf("align: empty image")
	}

	angle, direction, err := RotationAngle(left, right)
	if err != nil {
		return Result{Image: img.Clone(), Transform: Identity(), Direction: direction}, err
	}

	center := geometry.PixelPoint{X: float64(img.Cols()) / 2, Y: float64(img.Rows()) / 2}
	m := RotationMatrix(center, float64(direction)*angle, 1.0)

	M := m.Mat()
	defer M.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffine(img, &rotated, M, image.Pt(img.Cols(), img.Rows()))

	return Result{
		Image:     rotated,
		Transform: m,
		Angle:     angle,
		Direction: direction,
	}, nil
}

// AlignFrame aligns img using the eye keypoints of g.
func AlignFrame(img gocv.Mat, g *geometry.Frame) (Result, error) {
	left, right := g.Eyes()
	w, h := img.Cols(), img.Rows()
	return Align(img, left.Denormalize(w, h), right.Denormalize(w, h))
}

// RotationAngle returns the angle in degrees and the direction that level
// the eyes. The third corner of the reference triangle sits level with the
// higher eye, below or above the other one.
func RotationAngle(left, right geometry.PixelPoint) (float64, int, error) {
	var third geometry.PixelPoint
	direction := 1
	if left.Y > right.Y {
		third = geometry.PixelPoint{X: right.X, Y: left.Y}
		direction = -1
	} else {
		third = geometry.PixelPoint{X: left.X, Y: right.Y}
	}

	a := geometry.Distance(left, third)
	b := geometry.Distance(right, third)
	c := geometry.Distance(right, left)

	if b == 0 || c == 0 {
		return 0, direction, fmt.Errorf("%w: eyes at %v and %v", ErrDegenerateGeometry, left, right)
	}

	angle := math.Acos(CosineRule(a, b, c)) * 180 / math.Pi
	if direction == -1 {
		angle = 90 - angle
	}
	return angle, direction, nil
}

// CosineRule returns the cosine of the angle opposite side a, clamped to
// [-1, 1] so rounding never pushes it outside the domain of acos.
func CosineRule(a, b, c float64) float64 {
	cos := (b*b + c*c - a*a) / (2 * b * c)
	return max(-1.0, min(1.0, cos))
}

// Unwarp maps an aligned image back into the original frame of the given
// size using the inverse of m.
func Unwarp(aligned gocv.Mat, m Matrix, size image.Point) (gocv.Mat, error) {
	inv, err := m.Invert()
	if err != nil {
		return gocv.NewMat(), err
	}

	M := inv.Mat()
	defer M.Close()

	out := gocv.NewMat()
	gocv.WarpAffine(aligned, &out, M, size)
	return out, nil
}
