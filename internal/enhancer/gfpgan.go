// Package enhancer restores the detail of aligned faces before they are
// pasted back into the frame.
package enhancer

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/facegeom/internal/inference"
)

const (
	gfpganInputSize = 512
	// crop margin around the face box, as a fraction of its longer side
	cropMargin = 0.25
)

// GFPGAN performs face enhancement/restoration
type GFPGAN struct {
	session *inference.Session
}

// NewGFPGAN creates a new GFPGAN face enhancer
func NewGFPGAN(modelPath string) (*GFPGAN, error) {
	session, err := inference.NewSession(modelPath, []string{"input"}, []string{"output"})
	if err != nil {
		return nil, fmt.Errorf("failed to create GFPGAN session: %w", err)
	}

	return &GFPGAN{
		session: session,
	}, nil
}

// Process enhances the face inside box and returns a copy of aligned with the
// restored crop written back in place.
func (g *GFPGAN) Process(aligned gocv.Mat, box image.Rectangle) (gocv.Mat, error) {
	out := aligned.Clone()

	crop := squareCrop(box, aligned.Cols(), aligned.Rows())
	if crop.Empty() {
		return out, nil
	}

	region := out.Region(crop)
	defer region.Close()

	enhanced, err := g.Enhance(region)
	if err != nil {
		out.Close()
		return gocv.NewMat(), err
	}
	defer enhanced.Close()

	restored := gocv.NewMat()
	defer restored.Close()
	gocv.Resize(enhanced, &restored, image.Pt(crop.Dx(), crop.Dy()), 0, 0, gocv.InterpolationArea)
	restored.CopyTo(&region)

	return out, nil
}

// Enhance restores a BGR face crop and returns it at 512x512.
func (g *GFPGAN) Enhance(face gocv.Mat) (gocv.Mat, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	if face.Rows() != gfpganInputSize || face.Cols() != gfpganInputSize {
		gocv.Resize(face, &resized, image.Pt(gfpganInputSize, gfpganInputSize), 0, 0, gocv.InterpolationLinear)
	} else {
		face.CopyTo(&resized)
	}

	// (x/255 - 0.5) / 0.5, RGB, NCHW
	blob := gocv.BlobFromImage(resized, 1.0/127.5, image.Pt(gfpganInputSize, gfpganInputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	blobData, err := blob.DataPtrFloat32()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to read blob: %w", err)
	}

	inputTensor, err := inference.CreateTensor([]int64{1, 3, gfpganInputSize, gfpganInputSize}, blobData)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 3, gfpganInputSize, gfpganInputSize})
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := g.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return gocv.NewMat(), fmt.Errorf("GFPGAN inference failed: %w", err)
	}

	return tensorToImage(outputTensor.GetData(), gfpganInputSize)
}

// Close releases resources
func (g *GFPGAN) Close() error {
	return g.session.Destroy()
}

// tensorToImage converts an NCHW RGB tensor in [-1, 1] to a BGR image.
func tensorToImage(output []float32, size int) (gocv.Mat, error) {
	plane := size * size
	if len(output) != 3*plane {
		return gocv.NewMat(), fmt.Errorf("output has %d values, want %d", len(output), 3*plane)
	}

	pixels := make([]byte, plane*3)
	for i := 0; i < plane; i++ {
		r := output[i]
		g := output[plane+i]
		b := output[2*plane+i]

		pixels[i*3+0] = toByte(b)
		pixels[i*3+1] = toByte(g)
		pixels[i*3+2] = toByte(r)
	}

	return gocv.NewMatFromBytes(size, size, gocv.MatTypeCV8UC3, pixels)
}

func toByte(v float32) uint8 {
	v = (clamp(v, -1, 1) + 1) * 127.5
	return uint8(v + 0.5)
}

// squareCrop grows box into a square with a margin and clips it to the image.
func squareCrop(box image.Rectangle, width, height int) image.Rectangle {
	if box.Empty() {
		return image.Rectangle{}
	}
	side := max(box.Dx(), box.Dy())
	side += int(float64(side) * cropMargin * 2)

	c := image.Pt((box.Min.X+box.Max.X)/2, (box.Min.Y+box.Max.Y)/2)
	r := image.Rect(c.X-side/2, c.Y-side/2, c.X-side/2+side, c.Y-side/2+side)
	return r.Intersect(image.Rect(0, 0, width, height))
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
