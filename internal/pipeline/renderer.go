package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/align"
	"github.com/dudu/facegeom/internal/compositor"
	"github.com/dudu/facegeom/internal/extract"
	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

// Timing holds performance timing information
type Timing struct {
	Mask    time.Duration
	Extract time.Duration
	Align   time.Duration
	Process time.Duration
	Unwarp  time.Duration
	Paste   time.Duration
	Total   time.Duration
}

// Renderer composites faces back onto their frames using stored geometry
type Renderer struct {
	order     []oval.Edge
	processor FaceProcessor
	log       zerolog.Logger

	// OnFrame is called after each frame of RenderVideo, before it is written
	OnFrame func(index int, rendered gocv.Mat, g *geometry.Frame)

	lastTiming Timing
}

// NewRenderer creates a renderer for a traversal order. processor may be nil.
func NewRenderer(order []oval.Edge, processor FaceProcessor, logger zerolog.Logger) (*Renderer, error) {
	if err := oval.Validate(order); err != nil {
		return nil, err
	}
	return &Renderer{
		order:     order,
		processor: processor,
		log:       logger,
	}, nil
}

// Render runs one frame through mask, extraction, alignment, the face
// processor, unwarping and paste-back. A no-face frame comes back as an
// unchanged copy. The caller owns the returned Mat.
func (r *Renderer) Render(frame gocv.Mat, g *geometry.Frame) (gocv.Mat, error) {
	totalStart := time.Now()
	var timing Timing
	defer func() {
		timing.Total = time.Since(totalStart)
		r.lastTiming = timing
	}()

	if g.IsSentinel() {
		return frame.Clone(), nil
	}

	start := time.Now()
	mask, err := compositor.BuildMask(frame, g, r.order)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("mask: %w", err)
	}
	defer mask.Close()
	timing.Mask = time.Since(start)

	start = time.Now()
	face, err := compositor.ExtractFace(frame, mask)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("extract: %w", err)
	}
	defer face.Close()
	timing.Extract = time.Since(start)

	start = time.Now()
	aligned, err := align.AlignFrame(face, g)
	if err != nil && !errors.Is(err, align.ErrDegenerateGeometry) {
		aligned.Close()
		return gocv.NewMat(), fmt.Errorf("align: %w", err)
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("rendering face unaligned")
	}
	defer aligned.Close()
	timing.Align = time.Since(start)

	start = time.Now()
	processed, err := r.process(aligned.Image, faceBox(g, aligned.Transform, frame.Cols(), frame.Rows()))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("process: %w", err)
	}
	defer processed.Close()
	timing.Process = time.Since(start)

	start = time.Now()
	restored, err := align.Unwarp(processed, aligned.Transform, image.Pt(frame.Cols(), frame.Rows()))
	if err != nil {
		restored.Close()
		return gocv.NewMat(), fmt.Errorf("unwarp: %w", err)
	}
	defer restored.Close()
	timing.Unwarp = time.Since(start)

	start = time.Now()
	out, err := compositor.PasteBack(restored, frame, mask)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("paste: %w", err)
	}
	timing.Paste = time.Since(start)

	return out, nil
}

func (r *Renderer) process(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error) {
	if r.processor == nil {
		return aligned.Clone(), nil
	}
	out, err := r.processor.Process(aligned, box)
	if err != nil {
		return gocv.NewMat(), err
	}
	if out.Cols() != aligned.Cols() || out.Rows() != aligned.Rows() || out.Type() != aligned.Type() {
		out.Close()
		return gocv.NewMat(), fmt.Errorf("%w: processor returned %dx%d, want %dx%d",
			compositor.ErrDimensionMismatch, out.Cols(), out.Rows(), aligned.Cols(), aligned.Rows())
	}
	return out, nil
}

// RenderVideo renders every frame of src with the matching geometry of v and
// writes the result to sink. It returns the number of frames written.
func (r *Renderer) RenderVideo(ctx context.Context, src extract.FrameSource, v *geometry.Video, sink FrameSink) (int, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	written := 0
	for src.Read(&frame) {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("rendering cancelled: %w", err)
		}

		g, err := v.Frame(written)
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", written, err)
		}

		var out gocv.Mat
		if v.HasFace(written) {
			if out, err = r.Render(frame, g); err != nil {
				return written, fmt.Errorf("frame %d: %w", written, err)
			}
		} else {
			out = frame.Clone()
		}

		if r.OnFrame != nil {
			r.OnFrame(written, out, g)
		}
		err = sink.Write(out)
		out.Close()
		if err != nil {
			return written, fmt.Errorf("frame %d: %w", written, err)
		}
		written++
	}

	if written < v.Len() {
		r.log.Warn().Int("rendered", written).Int("geometry", v.Len()).Msg("video ended before geometry")
	}
	return written, nil
}

// LastTiming returns timing from last Render call
func (r *Renderer) LastTiming() Timing {
	return r.lastTiming
}

// faceBox maps the face bounding box through m and returns its pixel bounds.
func faceBox(g *geometry.Frame, m align.Matrix, width, height int) image.Rectangle {
	b := g.PixelBox(width, height)
	corners := []geometry.PixelPoint{
		{X: b.X, Y: b.Y},
		{X: b.X + b.Width, Y: b.Y},
		{X: b.X, Y: b.Y + b.Height},
		{X: b.X + b.Width, Y: b.Y + b.Height},
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := m.Apply(c)
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	box := image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
	return box.Intersect(image.Rect(0, 0, width, height))
}

// Blur returns a processor that blurs the face region of the aligned image.
func Blur(ksize int) FaceProcessor {
	if ksize%2 == 0 {
		ksize++
	}
	return ProcessorFunc(func(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error) {
		out := aligned.Clone()
		if box.Empty() {
			return out, nil
		}
		roi := out.Region(box)
		defer roi.Close()
		gocv.GaussianBlur(roi, &roi, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
		return out, nil
	})
}
