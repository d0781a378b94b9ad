// Package compositor builds face masks from the oval traversal order and
// moves face pixels between images through them.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

// ErrDimensionMismatch is returned when images and masks do not line up.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Mask is a single-channel 8-bit image: 255 inside the face, 0 outside.
type Mask struct {
	gocv.Mat
}

// At reports whether pixel (x, y) is inside the mask.
func (m Mask) At(x, y int) bool {
	return m.GetUCharAt(y, x) != 0
}

// Count returns the number of pixels inside the mask.
func (m Mask) Count() int {
	return gocv.CountNonZero(m.Mat)
}

// BuildMask rasterizes the face oval of g into a mask the size of frame.
// Landmarks are mapped to pixels by truncation. A sentinel geometry gives an
// empty mask.
func BuildMask(frame gocv.Mat, g *geometry.Frame, order []oval.Edge) (Mask, error) {
	width, height := frame.Cols(), frame.Rows()
	if width <= 0 || height <= 0 {
		return Mask{}, fmt.Errorf("%w: empty frame", ErrDimensionMismatch)
	}

	mask := gocv.Zeros(height, width, gocv.MatTypeCV8U)
	if g.IsSentinel() {
		return Mask{mask}, nil
	}

	poly, err := Polygon(g, order, width, height)
	if err != nil {
		mask.Close()
		return Mask{}, err
	}

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	return Mask{mask}, nil
}

// Polygon returns the oval outline in pixels: both endpoints of every edge,
// in traversal order.
func Polygon(g *geometry.Frame, order []oval.Edge, width, height int) ([]image.Point, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: empty traversal order", oval.ErrMalformedTopology)
	}

	poly := make([]image.Point, 0, 2*len(order))
	for _, e := range order {
		for _, idx := range [2]int{e.From, e.To} {
			p, err := g.Landmark(idx)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", oval.ErrMalformedTopology, err)
			}
			poly = append(poly, p.Pixel(width, height))
		}
	}
	return poly, nil
}

// ExtractFace returns a copy of frame that is black outside the mask.
func ExtractFace(frame gocv.Mat, mask Mask) (gocv.Mat, error) {
	if err := sameSize(frame, mask.Mat); err != nil {
		return gocv.NewMat(), err
	}

	face := gocv.Zeros(frame.Rows(), frame.Cols(), frame.Type())
	frame.CopyToWithMask(&face, mask.Mat)
	return face, nil
}

// PasteBack returns a copy of background with the mask area taken from face.
// Neither input is modified.
func PasteBack(face, background gocv.Mat, mask Mask) (gocv.Mat, error) {
	if err := sameSize(face, background); err != nil {
		return gocv.NewMat(), err
	}
	if face.Type() != background.Type() {
		return gocv.NewMat(), fmt.Errorf("%w: face type %v, background type %v",
			ErrDimensionMismatch, face.Type(), background.Type())
	}
	if err := sameSize(background, mask.Mat); err != nil {
		return gocv.NewMat(), err
	}

	out := background.Clone()
	face.CopyToWithMask(&out, mask.Mat)
	return out, nil
}

func sameSize(a, b gocv.Mat) error {
	if a.Empty() || b.Empty() {
		return fmt.Errorf("%w: empty image", ErrDimensionMismatch)
	}
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch,
			a.Cols(), a.Rows(), b.Cols(), b.Rows())
	}
	return nil
}
