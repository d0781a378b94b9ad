package detector

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/inference"
)

// MeshConfig names the tensors of a face mesh landmark model
type MeshConfig struct {
	InputName       string
	LandmarksOutput string
	ScoreOutput     string
	InputSize       int
	ScoreThreshold  float32
	CropScale       float32 // ROI expansion around the detected box
}

// DefaultMeshConfig matches the MediaPipe face landmarker with attention (478 points)
func DefaultMeshConfig() MeshConfig {
	return MeshConfig{
		InputName:       "input_12",
		LandmarksOutput: "Identity",
		ScoreOutput:     "Identity_1",
		InputSize:       256,
		ScoreThreshold:  0.5,
		CropScale:       1.5,
	}
}

// FaceMesh predicts 478 dense landmarks per face.
// It finds face regions with its own ROI detector, so callers pass the full frame.
type FaceMesh struct {
	session *inference.Session
	roi     *SCRFD
	cfg     MeshConfig
}

// NewFaceMesh creates a landmarker. It takes ownership of roi.
func NewFaceMesh(modelPath string, roi *SCRFD, cfg MeshConfig) (*FaceMesh, error) {
	if roi == nil {
		return nil, fmt.Errorf("face mesh needs a ROI detector")
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("invalid mesh input size %d", cfg.InputSize)
	}
	if cfg.CropScale <= 0 {
		cfg.CropScale = 1.5
	}

	session, err := inference.NewSession(modelPath,
		[]string{cfg.InputName},
		[]string{cfg.LandmarksOutput, cfg.ScoreOutput})
	if err != nil {
		return nil, fmt.Errorf("failed to create face mesh session: %w", err)
	}

	return &FaceMesh{session: session, roi: roi, cfg: cfg}, nil
}

// Landmark returns one normalized mesh per face found in an RGB image, best ROI first.
func (m *FaceMesh) Landmark(img gocv.Mat) ([]Mesh, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	faces, err := m.roi.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("face mesh roi: %w", err)
	}

	meshes := make([]Mesh, 0, len(faces))
	for i := range faces {
		mesh, ok, err := m.landmarkFace(img, faces[i].BoundingBox)
		if err != nil {
			return nil, err
		}
		if ok {
			meshes = append(meshes, mesh)
		}
	}
	return meshes, nil
}

// landmarkFace runs the mesh model on one square crop around bbox
func (m *FaceMesh) landmarkFace(img gocv.Mat, bbox BoundingBox) (Mesh, bool, error) {
	size := m.cfg.InputSize
	center := bbox.Center()
	maxDim := max(bbox.Width(), bbox.Height())
	if maxDim <= 0 {
		return Mesh{}, false, nil
	}
	scale := float32(size) / (maxDim * m.cfg.CropScale)

	M := cropTransform(center, scale, size)
	crop := gocv.NewMat()
	defer crop.Close()
	gocv.WarpAffine(img, &crop, M, image.Pt(size, size))
	M.Close()

	// NHWC float input in [0, 1]
	floatMat := gocv.NewMat()
	defer floatMat.Close()
	crop.ConvertToWithParams(&floatMat, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	pixels, err := floatMat.DataPtrFloat32()
	if err != nil {
		return Mesh{}, false, fmt.Errorf("failed to read crop: %w", err)
	}
	input := make([]float32, len(pixels))
	copy(input, pixels)

	inputTensor, err := inference.CreateTensor([]int64{1, int64(size), int64(size), 3}, input)
	if err != nil {
		return Mesh{}, false, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// x, y, z per landmark
	landmarkTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, geometry.NumLandmarks * 3})
	if err != nil {
		return Mesh{}, false, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer landmarkTensor.Destroy()

	scoreTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 1, 1, 1})
	if err != nil {
		return Mesh{}, false, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer scoreTensor.Destroy()

	if err := m.session.Run([]ort.Value{inputTensor}, []ort.Value{landmarkTensor, scoreTensor}); err != nil {
		return Mesh{}, false, fmt.Errorf("face mesh inference failed: %w", err)
	}

	// score output is a logit
	if sigmoid(scoreTensor.GetData()[0]) < m.cfg.ScoreThreshold {
		return Mesh{}, false, nil
	}

	return meshFromCrop(landmarkTensor.GetData(), center, scale, size, img.Cols(), img.Rows()), true, nil
}

// cropTransform maps the original image into a size×size crop centred on center
func cropTransform(center Point, scale float32, size int) gocv.Mat {
	M := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	half := float64(size) / 2

	M.SetDoubleAt(0, 0, float64(scale))
	M.SetDoubleAt(0, 1, 0)
	M.SetDoubleAt(0, 2, half-float64(center.X*scale))
	M.SetDoubleAt(1, 0, 0)
	M.SetDoubleAt(1, 1, float64(scale))
	M.SetDoubleAt(1, 2, half-float64(center.Y*scale))

	return M
}

// meshFromCrop maps crop-space landmarks back to the original image and normalizes them
func meshFromCrop(raw []float32, center Point, scale float32, size, width, height int) Mesh {
	var mesh Mesh
	half := float32(size) / 2
	w, h := float64(width), float64(height)

	for i := range mesh {
		x := (raw[i*3]-half)/scale + center.X
		y := (raw[i*3+1]-half)/scale + center.Y
		mesh[i] = geometry.Point{X: float64(x) / w, Y: float64(y) / h}
	}
	return mesh
}

// Close releases the landmark model and its ROI detector
func (m *FaceMesh) Close() error {
	var firstErr error
	if err := m.session.Destroy(); err != nil {
		firstErr = err
	}
	if err := m.roi.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}
