// Package extract turns frames into geometry by running a face detector and
// a face landmarker on each frame.
package extract

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/detector"
	"github.com/dudu/facegeom/internal/geometry"
)

// Extractor drives the two engines for single images and whole videos.
// With more than one worker the engines are called concurrently and must
// be safe for that.
type Extractor struct {
	det      Detector
	lm       Landmarker
	log      zerolog.Logger
	workers  int
	timeout  time.Duration
	progress ProgressFunc
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.log = l }
}

// WithWorkers sets how many frames are processed at once.
func WithWorkers(n int) Option {
	return func(e *Extractor) { e.workers = n }
}

// WithTimeout bounds each inference call. A call that runs over counts as no face.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithProgress registers a per-frame callback for video extraction.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) { e.progress = fn }
}

// New creates an Extractor over the given engines.
func New(det Detector, lm Landmarker, opts ...Option) (*Extractor, error) {
	if det == nil || lm == nil {
		return nil, errors.New("extractor needs both a detector and a landmarker")
	}
	e := &Extractor{
		det:     det,
		lm:      lm,
		log:     zerolog.Nop(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", e.workers)
	}
	if e.timeout < 0 {
		return nil, fmt.Errorf("negative inference timeout %s", e.timeout)
	}
	return e, nil
}

// ExtractImage returns the geometry of a BGR image. When no face is found the
// sentinel frame is returned together with an error wrapping
// geometry.ErrNoFaceDetected.
func (e *Extractor) ExtractImage(ctx context.Context, img gocv.Mat) (geometry.Frame, error) {
	return e.extract(ctx, img)
}

// ExtractVideo reads src to exhaustion and returns one frame of geometry per
// decoded frame, in the order they were read. Frames without a face become
// sentinels and are listed in the result's NoFace. Only cancellation of ctx
// aborts the run.
func (e *Extractor) ExtractVideo(ctx context.Context, src FrameSource) (*geometry.Video, error) {
	hint := 0
	if c, ok := src.(interface{ FrameCount() int }); ok {
		hint = c.FrameCount()
	}
	v := geometry.NewVideo(hint)

	tasks := make(chan task, e.workers)
	results := make(chan result, e.workers*2)

	// Aggregator must run concurrently to keep results draining
	aggDone := make(chan struct{})
	go func() {
		e.collect(results, v)
		close(aggDone)
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.work(ctx, tasks, results)
		}()
	}

	read := e.feed(ctx, src, tasks)
	close(tasks)
	wg.Wait()
	close(results)
	<-aggDone

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction stopped after %d of %d frames: %w", v.Len(), read, err)
	}

	e.log.Info().
		Int("frames", v.Len()).
		Int("faces", v.FaceCount()).
		Int("no_face", len(v.NoFace)).
		Msg("video extracted")
	return v, nil
}

type task struct {
	index int
	img   gocv.Mat
}

type result struct {
	index int
	frame geometry.Frame
	found bool
}

// feed reads frames into tasks until src is exhausted or ctx is done.
// It returns the number of frames handed out.
func (e *Extractor) feed(ctx context.Context, src FrameSource, tasks chan<- task) int {
	buf := gocv.NewMat()
	defer buf.Close()

	n := 0
	for src.Read(&buf) {
		if buf.Empty() {
			break
		}
		t := task{index: n, img: buf.Clone()}
		select {
		case tasks <- t:
			n++
		case <-ctx.Done():
			t.img.Close()
			return n
		}
	}
	return n
}

// work extracts frames until tasks is closed. After cancellation the
// remaining tasks are only released.
func (e *Extractor) work(ctx context.Context, tasks <-chan task, results chan<- result) {
	for t := range tasks {
		if ctx.Err() != nil {
			t.img.Close()
			continue
		}

		frame, err := e.extract(ctx, t.img)
		t.img.Close()

		if ctx.Err() != nil {
			continue
		}
		results <- result{index: t.index, frame: frame, found: err == nil}
	}
}

// collect appends results to v in frame order.
func (e *Extractor) collect(results <-chan result, v *geometry.Video) {
	// Buffer for re-ordering frames (worker 2 might finish before worker 1)
	pending := make(map[int]result)
	next := 0

	for res := range results {
		pending[res.index] = res

		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			v.Append(r.frame, r.found)
			e.log.Debug().Int("frame", next).Bool("face", r.found).Msg("frame processed")
			if e.progress != nil {
				e.progress(next, r.found)
			}
			next++
		}
	}
}

// extract runs both engines on one BGR frame and assembles its geometry.
func (e *Extractor) extract(ctx context.Context, img gocv.Mat) (geometry.Frame, error) {
	if err := ctx.Err(); err != nil {
		return geometry.Sentinel(), err
	}
	if img.Empty() {
		return geometry.Sentinel(), fmt.Errorf("%w: empty frame", geometry.ErrNoFaceDetected)
	}
	width, height := img.Cols(), img.Rows()

	rgb := gocv.NewMat()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	// An engine that ran over its timeout may still be reading rgb.
	var inflight sync.WaitGroup
	defer func() {
		if e.timeout <= 0 {
			rgb.Close()
			return
		}
		go func() {
			inflight.Wait()
			rgb.Close()
		}()
	}()

	var faces []detector.Face
	err := e.call(ctx, &inflight, func() (err error) {
		faces, err = e.det.Detect(rgb)
		return err
	})
	if err != nil {
		return e.noFace(ctx, "detect", err)
	}

	var meshes []detector.Mesh
	err = e.call(ctx, &inflight, func() (err error) {
		meshes, err = e.lm.Landmark(rgb)
		return err
	})
	if err != nil {
		return e.noFace(ctx, "landmark", err)
	}

	if len(faces) == 0 || len(meshes) == 0 {
		return geometry.Sentinel(), fmt.Errorf("%w: %d detections, %d meshes",
			geometry.ErrNoFaceDetected, len(faces), len(meshes))
	}

	face := faces[0]
	frame, err := geometry.Assemble(meshes[0].Points(), face.BoundingBox.Box(),
		face.Keypoints.AsSlice(), width, height)
	if err != nil {
		return geometry.Sentinel(), fmt.Errorf("%w: %v", geometry.ErrNoFaceDetected, err)
	}
	return frame, nil
}

// noFace maps an engine failure to the sentinel, or passes cancellation through.
func (e *Extractor) noFace(ctx context.Context, stage string, err error) (geometry.Frame, error) {
	if ctx.Err() != nil {
		return geometry.Sentinel(), ctx.Err()
	}
	e.log.Warn().Err(err).Str("stage", stage).Msg("inference failed, treating frame as no face")
	return geometry.Sentinel(), fmt.Errorf("%w: %s: %v", geometry.ErrNoFaceDetected, stage, err)
}

// call runs fn, bounded by the configured timeout. On timeout fn keeps
// running in the background and is tracked by inflight.
func (e *Extractor) call(ctx context.Context, inflight *sync.WaitGroup, fn func() error) error {
	if e.timeout <= 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("inference call: %w", ctx.Err())
	}
}
