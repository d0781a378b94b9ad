//go:build darwin

// Command metalcheck reports whether go-metal can import the ONNX models
// used by facegeom.
package main

import (
	"fmt"
	"os"

	"github.com/tsawler/go-metal/checkpoints"

	"github.com/dudu/facegeom/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	paths := os.Args[1:]
	if len(paths) == 0 {
		paths = []string{cfg.DetectorModel, cfg.LandmarkerModel, cfg.EnhancerModel}
	}

	failed := 0
	for _, path := range paths {
		if err := check(path); err != nil {
			fmt.Printf("FAIL  %s: %v\n", path, err)
			failed++
		}
	}
	if failed > 0 {
		fmt.Println("\ngo-metal only supports: Conv, MatMul, Add, Relu, LeakyRelu,")
		fmt.Println("Sigmoid, Tanh, BatchNorm, Dropout, Softmax, Flatten")
		os.Exit(1)
	}
}

func check(path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	importer := checkpoints.NewONNXImporter()
	checkpoint, err := importer.ImportFromONNX(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	fmt.Printf("OK    %s: %d layers, %d weight tensors\n",
		path, len(checkpoint.ModelSpec.Layers), len(checkpoint.Weights))
	for i, layer := range checkpoint.ModelSpec.Layers {
		fmt.Printf("      %d: %s (%s)\n", i+1, layer.Name, layer.Type)
	}
	return nil
}
