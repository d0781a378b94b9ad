package detector

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/inference"
)

// SCRFD implements the SCRFD face detector.
// Input images must already be RGB.
type SCRFD struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float32
	featureStrides []int
	numAnchors     int
}

// NewSCRFD creates a new SCRFD detector
func NewSCRFD(modelPath string, inputSize int, confThreshold, nmsThreshold float32) (*SCRFD, error) {
	if inputSize <= 0 || inputSize%32 != 0 {
		return nil, fmt.Errorf("detection size must be a positive multiple of 32, got %d", inputSize)
	}

	// SCRFD has 1 input and 9 outputs (3 levels × 3 outputs each: score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(modelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &SCRFD{
		session:        session,
		inputSize:      inputSize,
		confThreshold:  confThreshold,
		nmsThreshold:   nmsThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2, // anchors per position
	}, nil
}

// Detect finds faces in an RGB image, best score first.
// Bounding boxes are in pixels; keypoints are normalized by the image size.
func (s *SCRFD) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	origHeight := img.Rows()
	origWidth := img.Cols()

	// Preprocess: resize and normalize
	inputBlob, scale := s.preprocess(img)
	defer inputBlob.Close()

	blobData, err := inputBlob.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read input blob: %w", err)
	}
	floatData := make([]float32, len(blobData))
	copy(floatData, blobData)

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(s.inputSize), int64(s.inputSize)),
		floatData,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 0, 9)
	defer func() {
		for _, t := range outputTensors {
			t.Destroy()
		}
	}()

	for i, stride := range s.featureStrides {
		fm := s.inputSize / stride
		numAnchors := int64(fm * fm * s.numAnchors)

		for j, width := range []int64{1, 4, 10} { // score, bbox, kps
			t, err := inference.CreateEmptyTensor[float32]([]int64{numAnchors, width})
			if err != nil {
				return nil, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[i+3*j] = t
			outputTensors = append(outputTensors, t)
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	data := make([][]float32, len(outputs))
	for i, v := range outputs {
		data[i] = v.(*ort.Tensor[float32]).GetData()
	}

	faces := s.postprocess(data, scale, origWidth, origHeight)
	return suppress(faces, float64(s.nmsThreshold)), nil
}

// preprocess letterboxes the image into the model input and normalizes it
func (s *SCRFD) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))

	newWidth := max(1, int(float32(width)*scale))
	newHeight := max(1, int(float32(height)*scale))

	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.Zeros(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()
	resized.Close()

	// Normalize: (x - 127.5) / 128.0, HWC -> NCHW
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	padded.Close()

	return blob, scale
}

// postprocess decodes model outputs to faces
func (s *SCRFD) postprocess(outputs [][]float32, scale float32, origWidth, origHeight int) []Face {
	var faces []Face
	w, h := float32(origWidth), float32(origHeight)

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level]
		bboxData := outputs[level+3]
		kpsData := outputs[level+6]

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := scoreData[anchorIdx]
					if score > s.confThreshold {
						cx := (float32(x) + 0.5) * st
						cy := (float32(y) + 0.5) * st

						// Decode bbox (distance to edges)
						b := bboxData[anchorIdx*4 : anchorIdx*4+4]
						box := BoundingBox{
							X1: clamp((cx-b[0]*st)/scale, 0, w),
							Y1: clamp((cy-b[1]*st)/scale, 0, h),
							X2: clamp((cx+b[2]*st)/scale, 0, w),
							Y2: clamp((cy+b[3]*st)/scale, 0, h),
						}

						// Decode keypoints and normalize by the original frame size
						k := kpsData[anchorIdx*10 : anchorIdx*10+10]
						kp := func(i int) geometry.Point {
							return geometry.Point{
								X: float64((cx + k[2*i]*st) / scale / w),
								Y: float64((cy + k[2*i+1]*st) / scale / h),
							}
						}
						keypoints := Keypoints{
							LeftEye:    kp(0),
							RightEye:   kp(1),
							Nose:       kp(2),
							MouthLeft:  kp(3),
							MouthRight: kp(4),
						}
						keypoints.MouthCenter = midpoint(keypoints.MouthLeft, keypoints.MouthRight)

						faces = append(faces, Face{
							BoundingBox: box,
							Keypoints:   keypoints,
							Score:       score,
						})
					}
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases detector resources
func (s *SCRFD) Close() error {
	return s.session.Destroy()
}

func midpoint(a, b geometry.Point) geometry.Point {
	return geometry.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func clamp(x, min, max float32) float32 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
