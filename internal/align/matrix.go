package align

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
)

// Matrix is a 2x3 affine transform in pixel space, read back from the Mat
// OpenCV produced.
type Matrix [2][3]float64

// Identity returns the transform that leaves every point in place.
func Identity() Matrix {
	return Matrix{{1, 0, 0}, {0, 1, 0}}
}

// RotationMatrix builds the rotation about center by angle degrees
// (counter-clockwise on screen) with the given scale.
func RotationMatrix(center geometry.PixelPoint, angle, scale float64) Matrix {
	base := image.Pt(int(math.Floor(center.X)), int(math.Floor(center.Y)))
	M := gocv.GetRotationMatrix2D(base, angle, scale)
	defer M.Close()
	m := matrixFromMat(M)

	// GetRotationMatrix2D takes an integer centre; move the fixed point onto
	// the fractional one (odd frame sizes).
	dx, dy := center.X-float64(base.X), center.Y-float64(base.Y)
	m[0][2] += (1-m[0][0])*dx - m[0][1]*dy
	m[1][2] += -m[1][0]*dx + (1-m[1][1])*dy
	return m
}

// Apply maps p through the transform.
func (m Matrix) Apply(p geometry.PixelPoint) geometry.PixelPoint {
	return geometry.PixelPoint{
		X: m[0][0]*p.X + m[0][1]*p.Y + m[0][2],
		Y: m[1][0]*p.X + m[1][1]*p.Y + m[1][2],
	}
}

// Invert returns the inverse transform.
func (m Matrix) Invert() (Matrix, error) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if det == 0 || math.IsNaN(det) {
		return Matrix{}, fmt.Errorf("affine transform is not invertible")
	}

	M := m.Mat()
	defer M.Close()
	inv := gocv.NewMat()
	defer inv.Close()
	gocv.InvertAffineTransform(M, &inv)

	return matrixFromMat(inv), nil
}

// Mat returns the transform as a 2x3 CV_64F Mat. The caller closes it.
func (m Matrix) Mat() gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			M.SetDoubleAt(r, c, m[r][c])
		}
	}
	return M
}

func matrixFromMat(M gocv.Mat) Matrix {
	var m Matrix
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			m[r][c] = M.GetDoubleAt(r, c)
		}
	}
	return m
}
