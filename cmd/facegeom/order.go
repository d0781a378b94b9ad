package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dudu/facegeom/internal/artifact"
	"github.com/dudu/facegeom/internal/oval"
)

func newOrderCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Compute the face-oval traversal order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = a.cfg.OutputDir
			}

			cache, err := a.orders(cmd.Context())
			if err != nil {
				return err
			}
			db, err := a.orderDB(cmd.Context())
			if err != nil {
				return err
			}

			order, src, err := resolveOrder(cmd.Context(), cache, db, "", oval.FaceOval)
			if err != nil {
				return err
			}
			if err := artifact.SaveOrder(output, order); err != nil {
				return err
			}

			fp := oval.Fingerprint(order)
			if db != nil && src != fromDatabase {
				if fp, err = db.SaveOrder(cmd.Context(), order); err != nil {
					return fmt.Errorf("failed to store order: %w", err)
				}
			}

			a.log.Info().
				Int("edges", len(order)).
				Str("source", string(src)).
				Str("fingerprint", fp[:12]).
				Str("output", output).
				Msg("order written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact directory (default from FACEGEOM_OUTPUT_DIR)")
	return cmd
}
