package main

import (
	"context"
	"fmt"
	"image"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/artifact"
	"github.com/dudu/facegeom/internal/compositor"
	"github.com/dudu/facegeom/internal/enhancer"
	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/inference"
	"github.com/dudu/facegeom/internal/pipeline"
	"github.com/dudu/facegeom/internal/ui"
	"github.com/dudu/facegeom/internal/video"
)

type compositeOptions struct {
	input    string
	geometry string
	output   string
	codec    string
	enhance  bool
	blur     int
	preview  bool
}

func newCompositeCmd(a *app) *cobra.Command {
	var opts compositeOptions

	cmd := &cobra.Command{
		Use:   "composite",
		Short: "Render a video through the face compositor using stored geometry",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.geometry == "" {
				opts.geometry = a.cfg.OutputDir
			}
			return a.runComposite(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Path to the source video")
	cmd.Flags().StringVarP(&opts.geometry, "geometry", "g", "", "Artifact directory written by extract (default from FACEGEOM_OUTPUT_DIR)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "composite.mp4", "Rendered video")
	cmd.Flags().StringVar(&opts.codec, "codec", video.DefaultCodec, "FourCC of the output codec")
	cmd.Flags().BoolVarP(&opts.enhance, "enhance", "e", false, "Restore aligned faces with GFPGAN")
	cmd.Flags().StringVar(&a.cfg.EnhancerModel, "enhancer", a.cfg.EnhancerModel, "GFPGAN model used by --enhance")
	cmd.Flags().IntVar(&opts.blur, "blur", 0, "Blur aligned faces with this kernel size (0 disables)")
	cmd.Flags().BoolVarP(&opts.preview, "preview", "p", false, "Show a preview window")
	cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runComposite(ctx context.Context, opts compositeOptions) error {
	if opts.enhance && opts.blur > 0 {
		return fmt.Errorf("--enhance and --blur are mutually exclusive")
	}

	v, err := artifact.LoadVideo(opts.geometry)
	if err != nil {
		return err
	}

	order, err := a.faceOvalOrder(ctx, opts.geometry)
	if err != nil {
		return err
	}

	var processor pipeline.FaceProcessor
	switch {
	case opts.enhance:
		if err := inference.Initialize(a.inferenceOptions()); err != nil {
			return err
		}
		defer inference.Shutdown()

		gfpgan, err := enhancer.NewGFPGAN(a.cfg.EnhancerModel)
		if err != nil {
			return err
		}
		defer gfpgan.Close()
		processor = gfpgan
	case opts.blur > 0:
		processor = pipeline.Blur(opts.blur)
	}

	renderer, err := pipeline.NewRenderer(order, processor, a.log)
	if err != nil {
		return err
	}

	reader, err := video.Open(opts.input)
	if err != nil {
		return err
	}
	defer reader.Close()

	if reader.FrameCount() > 0 && reader.FrameCount() != v.Len() {
		a.log.Warn().
			Int("video_frames", reader.FrameCount()).
			Int("geometry_frames", v.Len()).
			Msg("frame count mismatch")
	}

	writer, err := video.Create(opts.output, opts.codec, reader.FPS(), reader.Width(), reader.Height())
	if err != nil {
		return err
	}
	defer writer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var window *ui.Window
	if opts.preview {
		window = ui.NewWindow("facegeom", reader.Width(), reader.Height())
		defer window.Close()
	}

	bar := newBar(v.Len(), "Compositing")
	renderer.OnFrame = func(index int, rendered gocv.Mat, g *geometry.Frame) {
		bar.Add(1)
		t := renderer.LastTiming()
		a.log.Debug().
			Int("frame", index).
			Dur("align", t.Align).
			Dur("process", t.Process).
			Dur("total", t.Total).
			Msg("rendered")

		if window == nil {
			return
		}
		status := "no face"
		var outline []image.Point
		if !g.IsSentinel() {
			status = "face"
			outline, _ = compositor.Polygon(g, order, rendered.Cols(), rendered.Rows())
		}
		window.Show(rendered, outline, fmt.Sprintf("frame %d  %s", index, status))
		if window.WaitKey(1) == ui.KeyEscape {
			cancel()
		}
	}

	n, err := renderer.RenderVideo(ctx, reader, v, writer)
	bar.Finish()
	if err != nil {
		return err
	}

	a.log.Info().
		Int("frames", n).
		Str("output", opts.output).
		Msg("composite written")
	return nil
}
