package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/artifact"
	"github.com/dudu/facegeom/internal/extract"
	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/pipeline"
	"github.com/dudu/facegeom/internal/store"
)

func newImageCmd(a *app) *cobra.Command {
	var input, output string

	cmd := &cobra.Command{
		Use:   "image",
		Short: "Extract the geometry of a single image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.cfg.OutputDir
			}

			img := gocv.IMRead(input, gocv.IMReadColor)
			if img.Empty() {
				return fmt.Errorf("failed to read image %s", input)
			}
			defer img.Close()

			var (
				frame geometry.Frame
				found bool
			)
			err := pipeline.Run(a.pipelineConfig(), func(p *pipeline.Pipeline) error {
				ex, err := p.Extractor(extract.WithTimeout(a.cfg.Timeout))
				if err != nil {
					return err
				}
				frame, err = ex.ExtractImage(cmd.Context(), img)
				if errors.Is(err, geometry.ErrNoFaceDetected) {
					a.log.Warn().Str("image", input).Msg("no face detected, writing sentinel geometry")
					return nil
				}
				found = err == nil
				return err
			})
			if err != nil {
				return err
			}

			v := geometry.NewVideo(1)
			v.Append(frame, found)
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
			}

			a.log.Info().
				Bool("face", found).
				Str("geometry", filepath.Join(output, artifact.GeometryFile)).
				Msg("image extracted")
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Path to image")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact directory (default from FACEGEOM_OUTPUT_DIR)")
	cmd.MarkFlagRequired("input")
	return cmd
}
