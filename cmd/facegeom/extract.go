package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/facegeom/internal/artifact"
	"github.com/dudu/facegeom/internal/extract"
	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/pipeline"
	"github.com/dudu/facegeom/internal/store"
	"github.com/dudu/facegeom/internal/video"
)

func newExtractCmd(a *app) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract per-frame geometry of a video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Workers < 1 {
				return fmt.Errorf("--workers must be at least 1")
			}
			if output == "" {
				output = a.cfg.OutputDir
			}

			reader, err := video.Open(input)
			if err != nil {
				return err
			}
			defer reader.Close()

			a.log.Info().
				Str("video", input).
				Int("frames", reader.FrameCount()).
				Float64("fps", reader.FPS()).
				Int("workers", a.cfg.Workers).
				Msg("extracting")

			bar := newBar(reader.FrameCount(), "Extracting")
			progress := func(index int, found bool) {
				bar.Add(1)
				if !found {
					a.log.Debug().Int("frame", index).Msg("no face")
				}
			}

			var v *geometry.Video
			err = pipeline.Run(a.pipelineConfig(), func(p *pipeline.Pipeline) error {
				ex, err := p.Extractor(
					extract.WithWorkers(a.cfg.Workers),
					extract.WithTimeout(a.cfg.Timeout),
					extract.WithProgress(progress),
				)
				if err != nil {
					return err
				}
				v, err = ex.ExtractVideo(cmd.Context(), reader)
				return err
			})
			bar.Finish()
			if err != nil {
				return err
			}

			if err := artifact.SaveVideo(output, v); err != nil {
				return err
			}

			db, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			if db != nil {
				id, err := store.VideoID(input)
				if err != nil {
					return err
				}
				if err := db.SaveVideo(cmd.Context(), id, input, v); err != nil {
					return fmt.Errorf("failed to store geometry: %w", err)
				}
				a.log.Info().Str("video_id", id[:12]).Msg("geometry stored")
			}

			a.log.Info().
				Int("frames", v.Len()).
				Int("no_face", len(v.NoFace)).
				Str("output", output).
				Msg("extraction complete")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to video")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact directory (default from FACEGEOM_OUTPUT_DIR)")
	cmd.Flags().IntVarP(&a.cfg.Workers, "workers", "w", a.cfg.Workers, "Number of parallel extraction workers")
	cmd.Flags().DurationVar(&a.cfg.Timeout, "timeout", a.cfg.Timeout, "Per-call inference timeout (0 disables)")
	cmd.Flags().IntVar(&a.cfg.DetectionSize, "detection-size", a.cfg.DetectionSize, "Detector input size (multiple of 32)")
	cmd.MarkFlagRequired("input")
	return cmd
}
