package compositor

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

// square traces landmarks 0..3 around the centre of the frame
var square = []oval.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 0}}

func squareGeometry() *geometry.Frame {
	var g geometry.Frame
	g[0] = geometry.Point{X: 0.2, Y: 0.2}
	g[1] = geometry.Point{X: 0.8, Y: 0.2}
	g[2] = geometry.Point{X: 0.8, Y: 0.8}
	g[3] = geometry.Point{X: 0.2, Y: 0.8}
	return &g
}

func randomFrame(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	gocv.Randu(&m, 1, 255)
	return m
}

// diffCount returns the number of differing channel values
func diffCount(t *testing.T, a, b gocv.Mat) int {
	t.Helper()
	d := gocv.NewMat()
	defer d.Close()
	gocv.AbsDiff(a, b, &d)
	flat := d.Reshape(1, 0)
	defer flat.Close()
	return gocv.CountNonZero(flat)
}

func TestBuildMask(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()

	mask, err := BuildMask(frame, squareGeometry(), square)
	if err != nil {
		t.Fatalf("BuildMask() error = %v", err)
	}
	defer mask.Close()

	tests := []struct {
		x, y int
		want bool
	}{
		{50, 50, true},
		{21, 21, true},
		{79, 79, true},
		{5, 5, false},
		{95, 50, false},
		{50, 90, false},
	}
	for _, tt := range tests {
		if got := mask.At(tt.x, tt.y); got != tt.want {
			t.Errorf("At(%d, %d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
	// corners at 20 and 80 are inclusive
	if c := mask.Count(); c != 61*61 {
		t.Errorf("Count() = %d, want %d", c, 61*61)
	}
}

func TestBuildMaskDimensions(t *testing.T) {
	order, err := oval.Order(oval.FaceOval)
	if err != nil {
		t.Fatal(err)
	}

	// landmarks on a small ellipse, whatever the frame size
	var g geometry.Frame
	for i := 0; i < geometry.NumLandmarks; i++ {
		g[i] = geometry.Point{X: 0.3 + 0.4*float64(i%7)/6, Y: 0.2 + 0.6*float64(i%11)/10}
	}

	sizes := []struct{ rows, cols int }{{1, 1}, {48, 64}, {480, 640}, {720, 405}}
	for _, s := range sizes {
		frame := gocv.NewMatWithSize(s.rows, s.cols, gocv.MatTypeCV8UC3)
		mask, err := BuildMask(frame, &g, order)
		if err != nil {
			t.Fatalf("BuildMask(%dx%d) error = %v", s.cols, s.rows, err)
		}
		if mask.Rows() != s.rows || mask.Cols() != s.cols {
			t.Errorf("mask %dx%d, frame %dx%d", mask.Cols(), mask.Rows(), s.cols, s.rows)
		}
		mask.Close()
		frame.Close()
	}
}

func TestBuildMaskSentinel(t *testing.T) {
	frame := randomFrame(32, 32)
	defer frame.Close()

	g := geometry.Sentinel()
	mask, err := BuildMask(frame, &g, square)
	if err != nil {
		t.Fatal(err)
	}
	defer mask.Close()
	if mask.Count() != 0 {
		t.Errorf("sentinel mask has %d pixels set", mask.Count())
	}
}

func TestBuildMaskBadOrder(t *testing.T) {
	frame := randomFrame(32, 32)
	defer frame.Close()

	for _, order := range [][]oval.Edge{nil, {{From: 0, To: 500}, {From: 500, To: 0}}} {
		if _, err := BuildMask(frame, squareGeometry(), order); !errors.Is(err, oval.ErrMalformedTopology) {
			t.Errorf("BuildMask(%v) error = %v, want ErrMalformedTopology", order, err)
		}
	}
}

func TestExtractFace(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()
	mask, _ := BuildMask(frame, squareGeometry(), square)
	defer mask.Close()

	face, err := ExtractFace(frame, mask)
	if err != nil {
		t.Fatalf("ExtractFace() error = %v", err)
	}
	defer face.Close()

	if face.Rows() != frame.Rows() || face.Cols() != frame.Cols() {
		t.Fatalf("face %dx%d", face.Cols(), face.Rows())
	}
	if v := face.GetVecbAt(5, 5); v[0] != 0 || v[1] != 0 || v[2] != 0 {
		t.Errorf("outside pixel = %v, want black", v)
	}
	if a, b := face.GetVecbAt(50, 50), frame.GetVecbAt(50, 50); a[0] != b[0] || a[1] != b[1] || a[2] != b[2] {
		t.Errorf("inside pixel = %v, want %v", a, b)
	}
}

func TestExtractPasteBackIdempotent(t *testing.T) {
	frame := randomFrame(120, 90)
	defer frame.Close()
	mask, _ := BuildMask(frame, squareGeometry(), square)
	defer mask.Close()

	face, err := ExtractFace(frame, mask)
	if err != nil {
		t.Fatal(err)
	}
	defer face.Close()

	out, err := PasteBack(face, frame, mask)
	if err != nil {
		t.Fatalf("PasteBack() error = %v", err)
	}
	defer out.Close()

	if n := diffCount(t, out, frame); n != 0 {
		t.Errorf("round trip changed %d values", n)
	}
}

func TestPasteBackDoesNotMutate(t *testing.T) {
	background := randomFrame(64, 64)
	defer background.Close()
	original := background.Clone()
	defer original.Close()

	face := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 64, 64, gocv.MatTypeCV8UC3)
	defer face.Close()
	mask, _ := BuildMask(background, squareGeometry(), square)
	defer mask.Close()

	out, err := PasteBack(face, background, mask)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()

	if n := diffCount(t, background, original); n != 0 {
		t.Errorf("background modified in %d values", n)
	}
	if v := out.GetVecbAt(32, 32); v[0] != 0 {
		t.Errorf("masked pixel = %v, want face pixel", v)
	}
	if a, b := out.GetVecbAt(2, 2), original.GetVecbAt(2, 2); a[0] != b[0] {
		t.Errorf("unmasked pixel = %v, want %v", a, b)
	}
}

func TestDimensionMismatch(t *testing.T) {
	a := randomFrame(32, 32)
	defer a.Close()
	b := randomFrame(32, 40)
	defer b.Close()
	gray := gocv.NewMatWithSize(32, 32, gocv.MatTypeCV8U)
	defer gray.Close()

	maskA, _ := BuildMask(a, squareGeometry(), square)
	defer maskA.Close()
	maskB, _ := BuildMask(b, squareGeometry(), square)
	defer maskB.Close()

	if _, err := ExtractFace(b, maskA); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("ExtractFace() error = %v", err)
	}
	if _, err := PasteBack(a, b, maskA); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("PasteBack(face/background) error = %v", err)
	}
	if _, err := PasteBack(a, a, maskB); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("PasteBack(mask) error = %v", err)
	}
	if _, err := PasteBack(gray, a, maskA); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("PasteBack(type) error = %v", err)
	}
}
