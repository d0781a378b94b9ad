package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dudu/facegeom/internal/inference"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models [model.onnx...]",
		Short: "Print the input and output tensors of ONNX models",
		Long:  "Print the input and output tensors of ONNX models. Without arguments the configured detector, landmarker and enhancer are inspected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				paths = []string{a.cfg.DetectorModel, a.cfg.LandmarkerModel, a.cfg.EnhancerModel}
			}

			if err := inference.Initialize(a.inferenceOptions()); err != nil {
				return err
			}
			defer inference.Shutdown()

			failed := 0
			for _, path := range paths {
				info, err := inference.InspectModel(path)
				if err != nil {
					a.log.Error().Err(err).Str("model", path).Msg("inspect failed")
					failed++
					continue
				}
				printModel(cmd.OutOrStdout(), info)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d models could not be inspected", failed, len(paths))
			}
			return nil
		},
	}
}

func printModel(out io.Writer, info *inference.ModelInfo) {
	fmt.Fprintf(out, "=== %s ===\n", info.Path)
	if info.Producer != "" {
		fmt.Fprintf(out, "producer: %s (version %d)\n", info.Producer, info.Version)
	}
	if info.Description != "" {
		fmt.Fprintf(out, "description: %s\n", info.Description)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, t := range info.Inputs {
		fmt.Fprintf(tw, "input\t%s\t%s\t%s\n", t.Name, t.DataType, shape(t.Dimensions))
	}
	for _, t := range info.Outputs {
		fmt.Fprintf(tw, "output\t%s\t%s\t%s\n", t.Name, t.DataType, shape(t.Dimensions))
	}
	tw.Flush()
	fmt.Fprintln(out)
}

func shape(dims []int64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d < 0 {
			parts[i] = "?"
			continue
		}
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
