package pipeline

import (
	"image"

	"gocv.io/x/gocv"
)

// FaceProcessor transforms an aligned face. box is the face region in the
// aligned image. The result must have the size of aligned.
type FaceProcessor interface {
	Process(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error)
}

// ProcessorFunc adapts a function to FaceProcessor
type ProcessorFunc func(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error)

// Process calls f
func (f ProcessorFunc) Process(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error) {
	return f(aligned, box)
}

// FrameSink receives rendered frames in order
type FrameSink interface {
	Write(frame gocv.Mat) error
}
