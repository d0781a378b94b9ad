package extract

import (
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/detector"
)

// Detector finds faces in an RGB image, best first.
// Boxes are in pixels, keypoints normalized.
type Detector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
}

// Landmarker predicts normalized 478-point meshes in an RGB image, best first.
type Landmarker interface {
	Landmark(img gocv.Mat) ([]detector.Mesh, error)
}

// FrameSource yields BGR frames in temporal order.
// Read fills dst and returns false once the source is exhausted.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
}

// ProgressFunc is told about every frame in order once its geometry is settled.
type ProgressFunc func(index int, found bool)
