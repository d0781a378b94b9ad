package pipeline

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/align"
	"github.com/dudu/facegeom/internal/compositor"
	"github.com/dudu/facegeom/internal/extract"
	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

var square = []oval.Edge{{From: 0, To: 1}, {From: 1, To: 2}, {From: 2, To: 3}, {From: 3, To: 0}}

// levelFace has a square outline and horizontal eyes, so alignment is the identity
func levelFace() *geometry.Frame {
	var g geometry.Frame
	g[0] = geometry.Point{X: 0.2, Y: 0.2}
	g[1] = geometry.Point{X: 0.8, Y: 0.2}
	g[2] = geometry.Point{X: 0.8, Y: 0.8}
	g[3] = geometry.Point{X: 0.2, Y: 0.8}
	g[geometry.BoxOriginIndex] = geometry.Point{X: 0.2, Y: 0.2}
	g[geometry.BoxSizeIndex] = geometry.Point{X: 0.6, Y: 0.6}
	g[geometry.LeftEyeIndex] = geometry.Point{X: 0.4, Y: 0.4}
	g[geometry.RightEyeIndex] = geometry.Point{X: 0.6, Y: 0.4}
	return &g
}

func randomFrame(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	gocv.Randu(&m, 1, 255)
	return m
}

func diffCount(t *testing.T, a, b gocv.Mat) int {
	t.Helper()
	d := gocv.NewMat()
	defer d.Close()
	gocv.AbsDiff(a, b, &d)
	flat := d.Reshape(1, 0)
	defer flat.Close()
	return gocv.CountNonZero(flat)
}

func newRenderer(t *testing.T, p FaceProcessor) *Renderer {
	t.Helper()
	r, err := NewRenderer(square, p, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return r
}

func TestNewRendererRejectsBrokenOrder(t *testing.T) {
	_, err := NewRenderer([]oval.Edge{{From: 0, To: 1}, {From: 2, To: 3}}, nil, zerolog.Nop())
	if !errors.Is(err, oval.ErrMalformedTopology) {
		t.Errorf("NewRenderer() error = %v, want ErrMalformedTopology", err)
	}
}

func TestRenderSentinelPassesThrough(t *testing.T) {
	frame := randomFrame(60, 80)
	defer frame.Close()

	called := false
	r := newRenderer(t, ProcessorFunc(func(aligned gocv.Mat, _ image.Rectangle) (gocv.Mat, error) {
		called = true
		return aligned.Clone(), nil
	}))

	g := geometry.Sentinel()
	out, err := r.Render(frame, &g)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	defer out.Close()

	if n := diffCount(t, out, frame); n != 0 {
		t.Errorf("sentinel frame changed in %d values", n)
	}
	if called {
		t.Error("processor ran on a no-face frame")
	}
}

func TestRenderIdentityKeepsFrame(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()

	r := newRenderer(t, nil)
	out, err := r.Render(frame, levelFace())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	defer out.Close()

	if n := diffCount(t, out, frame); n != 0 {
		t.Errorf("round trip changed %d values", n)
	}
	if r.LastTiming().Total <= 0 {
		t.Error("timing not recorded")
	}
}

func TestRenderProcessorOnlyTouchesMask(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()

	var gotBox image.Rectangle
	white := ProcessorFunc(func(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error) {
		gotBox = box
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0),
			aligned.Rows(), aligned.Cols(), aligned.Type()), nil
	})

	r := newRenderer(t, white)
	out, err := r.Render(frame, levelFace())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	defer out.Close()

	if want := image.Rect(20, 20, 80, 80); gotBox != want {
		t.Errorf("processor box = %v, want %v", gotBox, want)
	}

	inside := out.GetVecbAt(50, 50)
	for c, v := range inside {
		if v != 255 {
			t.Errorf("inside channel %d = %d, want 255", c, v)
		}
	}

	for _, p := range []image.Point{{5, 5}, {95, 5}, {5, 95}, {95, 95}} {
		got, want := out.GetVecbAt(p.Y, p.X), frame.GetVecbAt(p.Y, p.X)
		for c := range want {
			if got[c] != want[c] {
				t.Errorf("outside pixel %v channel %d = %d, want %d", p, c, got[c], want[c])
			}
		}
	}
}

func TestRenderProcessorSizeMismatch(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()

	small := ProcessorFunc(func(aligned gocv.Mat, _ image.Rectangle) (gocv.Mat, error) {
		return gocv.NewMatWithSize(10, 10, aligned.Type()), nil
	})

	r := newRenderer(t, small)
	out, err := r.Render(frame, levelFace())
	defer out.Close()
	if !errors.Is(err, compositor.ErrDimensionMismatch) {
		t.Errorf("Render() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestRenderDegenerateEyes(t *testing.T) {
	frame := randomFrame(100, 100)
	defer frame.Close()

	g := levelFace()
	g[geometry.RightEyeIndex] = g[geometry.LeftEyeIndex]

	r := newRenderer(t, nil)
	out, err := r.Render(frame, g)
	if err != nil {
		t.Fatalf("Render() error = %v, want unaligned render", err)
	}
	defer out.Close()

	if n := diffCount(t, out, frame); n != 0 {
		t.Errorf("unaligned render changed %d values", n)
	}
}

type recordingSink struct {
	frames int
}

func (s *recordingSink) Write(frame gocv.Mat) error {
	if frame.Empty() {
		return errors.New("empty frame")
	}
	s.frames++
	return nil
}

func TestRenderVideo(t *testing.T) {
	frames := make([]gocv.Mat, 3)
	for i := range frames {
		frames[i] = randomFrame(100, 100)
		defer frames[i].Close()
	}

	v := geometry.NewVideo(3)
	v.Append(*levelFace(), true)
	v.Append(geometry.Sentinel(), false)
	v.Append(*levelFace(), true)

	r := newRenderer(t, Blur(5))
	var seen []int
	r.OnFrame = func(index int, rendered gocv.Mat, g *geometry.Frame) {
		seen = append(seen, index)
		if index == 1 && !g.IsSentinel() {
			t.Error("frame 1 should carry the sentinel")
		}
	}

	sink := &recordingSink{}
	n, err := r.RenderVideo(context.Background(), &extract.SliceSource{Frames: frames}, v, sink)
	if err != nil {
		t.Fatalf("RenderVideo() error = %v", err)
	}
	if n != 3 || sink.frames != 3 {
		t.Errorf("RenderVideo() wrote %d (sink %d), want 3", n, sink.frames)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Errorf("OnFrame indices = %v", seen)
	}
}

func TestRenderVideoSkipsNoFaceFrames(t *testing.T) {
	frames := []gocv.Mat{randomFrame(100, 100), randomFrame(100, 100)}
	for _, f := range frames {
		defer f.Close()
	}

	// Frame 1 is listed as no-face even though its geometry is real
	v := geometry.NewVideoFrom([]geometry.Frame{*levelFace(), *levelFace()}, []int{1})

	calls := 0
	count := ProcessorFunc(func(aligned gocv.Mat, _ image.Rectangle) (gocv.Mat, error) {
		calls++
		return aligned.Clone(), nil
	})
	r := newRenderer(t, count)

	untouched := -1
	r.OnFrame = func(index int, rendered gocv.Mat, _ *geometry.Frame) {
		if index == 1 {
			untouched = diffCount(t, rendered, frames[1])
		}
	}

	n, err := r.RenderVideo(context.Background(), &extract.SliceSource{Frames: frames}, v, &recordingSink{})
	if err != nil {
		t.Fatalf("RenderVideo() error = %v", err)
	}
	if n != 2 {
		t.Errorf("RenderVideo() wrote %d, want 2", n)
	}
	if calls != 1 {
		t.Errorf("processor ran %d times, want 1", calls)
	}
	if untouched != 0 {
		t.Errorf("no-face frame changed %d values", untouched)
	}
}

func TestRenderVideoMissingGeometry(t *testing.T) {
	frames := []gocv.Mat{randomFrame(40, 40), randomFrame(40, 40)}
	for _, f := range frames {
		defer f.Close()
	}

	v := geometry.NewVideo(1)
	v.Append(geometry.Sentinel(), false)

	r := newRenderer(t, nil)
	n, err := r.RenderVideo(context.Background(), &extract.SliceSource{Frames: frames}, v, &recordingSink{})
	if err == nil {
		t.Fatal("expected error when the video outruns its geometry")
	}
	if n != 1 {
		t.Errorf("RenderVideo() wrote %d, want 1", n)
	}
}

func TestRenderVideoCancelled(t *testing.T) {
	frames := []gocv.Mat{randomFrame(40, 40)}
	defer frames[0].Close()

	v := geometry.NewVideo(1)
	v.Append(geometry.Sentinel(), false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRenderer(t, nil)
	if _, err := r.RenderVideo(ctx, &extract.SliceSource{Frames: frames}, v, &recordingSink{}); !errors.Is(err, context.Canceled) {
		t.Errorf("RenderVideo() error = %v, want context.Canceled", err)
	}
}

func TestFaceBox(t *testing.T) {
	g := levelFace()

	if got, want := faceBox(g, align.Identity(), 100, 100), image.Rect(20, 20, 80, 80); got != want {
		t.Errorf("faceBox(identity) = %v, want %v", got, want)
	}

	// a quarter turn about the centre keeps a centred square in place
	m := align.RotationMatrix(geometry.PixelPoint{X: 50, Y: 50}, 90, 1)
	got := faceBox(g, m, 100, 100)
	if got.Min.X < 19 || got.Min.X > 20 || got.Max.X < 80 || got.Max.X > 81 {
		t.Errorf("faceBox(rot90) = %v, want about (20,20)-(80,80)", got)
	}
}
