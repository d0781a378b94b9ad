package inference

import (
	"fmt"
	"os"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// TensorInfo describes one model input or output
type TensorInfo struct {
	Name       string
	Dimensions []int64
	DataType   string
}

// ModelInfo is what a model file declares about itself
type ModelInfo struct {
	Path        string
	Inputs      []TensorInfo
	Outputs     []TensorInfo
	Producer    string
	Version     int64
	Domain      string
	Description string
}

// InspectModel reads the input/output signature and metadata of a model.
// Initialize must have been called.
func InspectModel(modelPath string) (*ModelInfo, error) {
	if !Initialized() {
		return nil, fmt.Errorf("ONNX Runtime not initialized, call Initialize() first")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model %s: %w", modelPath, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info for %s: %w", modelPath, err)
	}

	info := &ModelInfo{
		Path:    modelPath,
		Inputs:  tensorInfos(inputs),
		Outputs: tensorInfos(outputs),
	}

	// metadata is optional, many exported models carry none
	metadata, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return info, nil
	}
	defer metadata.Destroy()

	if producer, err := metadata.GetProducerName(); err == nil {
		info.Producer = producer
	}
	if version, err := metadata.GetVersion(); err == nil {
		info.Version = version
	}
	if domain, err := metadata.GetDomain(); err == nil {
		info.Domain = domain
	}
	if desc, err := metadata.GetDescription(); err == nil {
		info.Description = desc
	}
	return info, nil
}

// HasOutput reports whether the model declares an output with the given name
func (m *ModelInfo) HasOutput(name string) bool {
	for _, o := range m.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}

func tensorInfos(in []ort.InputOutputInfo) []TensorInfo {
	out := make([]TensorInfo, 0, len(in))
	for _, i := range in {
		out = append(out, TensorInfo{
			Name:       i.Name,
			Dimensions: []int64(i.Dimensions),
			DataType:   fmt.Sprint(i.DataType),
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
