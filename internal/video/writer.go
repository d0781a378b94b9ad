package video

import (
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultCodec is the fourcc used when none is given
const DefaultCodec = "mp4v"

// Writer encodes BGR frames to a video file
type Writer struct {
	writer *gocv.VideoWriter
	width  int
	height int
	frames int
}

// Create opens path for writing frames of the given size
func Create(path, codec string, fps float64, width, height int) (*Writer, error) {
	if codec == "" {
		codec = DefaultCodec
	}
	if fps <= 0 {
		fps = 25
	}

	w, err := gocv.VideoWriterFile(path, codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create video %s: %w", path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("failed to create video %s with codec %s", path, codec)
	}

	return &Writer{writer: w, width: width, height: height}, nil
}

// Write appends one frame. The frame must match the writer's size.
func (w *Writer) Write(frame gocv.Mat) error {
	if frame.Cols() != w.width || frame.Rows() != w.height {
		return fmt.Errorf("frame %dx%d does not match video %dx%d",
			frame.Cols(), frame.Rows(), w.width, w.height)
	}
	if err := w.writer.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame %d: %w", w.frames, err)
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written
func (w *Writer) Frames() int {
	return w.frames
}

// Close finalizes the file
func (w *Writer) Close() error {
	if w.writer != nil {
		err := w.writer.Close()
		w.writer = nil
		return err
	}
	return nil
}
