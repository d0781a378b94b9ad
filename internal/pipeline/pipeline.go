package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dudu/facegeom/internal/detector"
	"github.com/dudu/facegeom/internal/extract"
	"github.com/dudu/facegeom/internal/inference"
)

// Config holds pipeline configuration
type Config struct {
	OrtLibrary      string
	UseCoreML       bool
	IntraOpThreads  int
	DetectorModel   string
	LandmarkerModel string
	DetectionSize   int
	ConfThreshold   float32
	NMSThreshold    float32
	Mesh            detector.MeshConfig
	Logger          zerolog.Logger
}

// Pipeline owns the inference engines for one batch of frames
type Pipeline struct {
	config     Config
	detector   *detector.SCRFD
	landmarker *detector.FaceMesh
}

// New loads both engines. Anything already loaded is released on failure.
func New(config Config) (*Pipeline, error) {
	if err := inference.Initialize(inference.Options{
		LibraryPath:    config.OrtLibrary,
		UseCoreML:      config.UseCoreML,
		IntraOpThreads: config.IntraOpThreads,
		Logger:         config.Logger,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	start := time.Now()

	// Create detector
	det, err := detector.NewSCRFD(
		config.DetectorModel,
		config.DetectionSize,
		config.ConfThreshold,
		config.NMSThreshold,
	)
	if err != nil {
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	// The landmarker locates faces with its own detector session
	roi, err := detector.NewSCRFD(
		config.DetectorModel,
		config.DetectionSize,
		config.ConfThreshold,
		config.NMSThreshold,
	)
	if err != nil {
		det.Close()
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create landmarker roi detector: %w", err)
	}

	mesh := config.Mesh
	if mesh.InputSize == 0 {
		mesh = detector.DefaultMeshConfig()
	}
	lm, err := detector.NewFaceMesh(config.LandmarkerModel, roi, mesh)
	if err != nil {
		roi.Close()
		det.Close()
		inference.Shutdown()
		return nil, fmt.Errorf("failed to create landmarker: %w", err)
	}

	config.Logger.Info().Dur("took", time.Since(start)).Msg("engines loaded")

	return &Pipeline{
		config:     config,
		detector:   det,
		landmarker: lm,
	}, nil
}

// Run loads the engines, calls fn and always releases them afterwards
func Run(config Config, fn func(p *Pipeline) error) (err error) {
	p, err := New(config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()
	return fn(p)
}

// Extractor returns a frame extractor over the pipeline's engines
func (p *Pipeline) Extractor(opts ...extract.Option) (*extract.Extractor, error) {
	opts = append([]extract.Option{extract.WithLogger(p.config.Logger)}, opts...)
	return extract.New(p.detector, p.landmarker, opts...)
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.landmarker != nil {
		if err := p.landmarker.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := inference.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %w", errors.Join(errs...))
	}
	return nil
}
