package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dudu/facegeom/internal/config"
	"github.com/dudu/facegeom/internal/inference"
	"github.com/dudu/facegeom/internal/oval"
	"github.com/dudu/facegeom/internal/pipeline"
	"github.com/dudu/facegeom/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

// app carries the state shared by every subcommand
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *store.Store
	cache *oval.Cache
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "facegeom",
		Short:         "Facial geometry extraction and face compositing",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.IntraOpThreads < 0 {
				return fmt.Errorf("--threads must not be negative")
			}
			level, err := zerolog.ParseLevel(a.cfg.LogLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
			}
			a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(level).
				With().
				Timestamp().
				Logger()
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.cache != nil {
				a.cache.Close()
			}
			if a.db != nil {
				// The command context may already be cancelled
				a.db.Close(context.Background())
			}
		},
	}

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVar(&cfg.OrtLibrary, "ort-library", cfg.OrtLibrary, "Path to the ONNX Runtime shared library")
	flags.BoolVar(&cfg.UseCoreML, "coreml", cfg.UseCoreML, "Use the CoreML execution provider when available")
	flags.IntVar(&cfg.IntraOpThreads, "threads", cfg.IntraOpThreads, "ONNX Runtime intra-op threads per session (0 lets the runtime decide)")
	flags.StringVar(&cfg.DetectorModel, "detector", cfg.DetectorModel, "Face detector model (SCRFD ONNX)")
	flags.StringVar(&cfg.LandmarkerModel, "landmarker", cfg.LandmarkerModel, "Face landmarker model (478-point ONNX)")
	flags.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "PostgreSQL connection string; empty disables the database")

	root.AddCommand(
		newImageCmd(a),
		newExtractCmd(a),
		newOrderCmd(a),
		newCompositeCmd(a),
		newModelsCmd(a),
	)
	return root
}

// store connects to the database on first use. It returns nil when no
// database is configured.
func (a *app) store(ctx context.Context) (*store.Store, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, nil
	}
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.New(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) inferenceOptions() inference.Options {
	return inference.Options{
		LibraryPath:    a.cfg.OrtLibrary,
		UseCoreML:      a.cfg.UseCoreML,
		IntraOpThreads: a.cfg.IntraOpThreads,
		Logger:         a.log,
	}
}

func (a *app) pipelineConfig() pipeline.Config {
	return pipeline.Config{
		OrtLibrary:      a.cfg.OrtLibrary,
		UseCoreML:       a.cfg.UseCoreML,
		IntraOpThreads:  a.cfg.IntraOpThreads,
		DetectorModel:   a.cfg.DetectorModel,
		LandmarkerModel: a.cfg.LandmarkerModel,
		DetectionSize:   a.cfg.DetectionSize,
		ConfThreshold:   a.cfg.ConfThreshold,
		NMSThreshold:    a.cfg.NMSThreshold,
		Logger:          a.log,
	}
}

// newBar writes a frame counter to stderr. total < 0 means unknown.
func newBar(total int, description string) *progressbar.ProgressBar {
	if total <= 0 {
		total = -1
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}
