package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the defaults every command starts from. Flags override them.
type Config struct {
	OrtLibrary      string
	UseCoreML       bool
	IntraOpThreads  int // 0 lets ONNX Runtime decide
	DetectorModel   string
	LandmarkerModel string
	EnhancerModel   string
	DetectionSize   int
	ConfThreshold   float32
	NMSThreshold    float32
	Workers         int
	Timeout         time.Duration
	OutputDir       string
	DatabaseURL     string
	LogLevel        string
}

// Load reads FACEGEOM_* environment variables.
func Load() (*Config, error) {
	c := &Config{
		OrtLibrary:      getEnv("FACEGEOM_ORT_LIBRARY", ""),
		DetectorModel:   getEnv("FACEGEOM_DETECTOR_MODEL", "models/det_10g.onnx"),
		LandmarkerModel: getEnv("FACEGEOM_LANDMARKER_MODEL", "models/face_landmarker.onnx"),
		EnhancerModel:   getEnv("FACEGEOM_ENHANCER_MODEL", "models/gfpgan_1.4.onnx"),
		OutputDir:       getEnv("FACEGEOM_OUTPUT_DIR", "output"),
		DatabaseURL:     getEnv("FACEGEOM_DATABASE_URL", ""),
		LogLevel:        getEnv("FACEGEOM_LOG_LEVEL", "info"),
	}

	var err error
	if c.UseCoreML, err = strconv.ParseBool(getEnv("FACEGEOM_COREML", "false")); err != nil {
		return nil, fmt.Errorf("FACEGEOM_COREML: %w", err)
	}
	if c.IntraOpThreads, err = strconv.Atoi(getEnv("FACEGEOM_INTRA_OP_THREADS", "0")); err != nil {
		return nil, fmt.Errorf("FACEGEOM_INTRA_OP_THREADS: %w", err)
	}
	if c.IntraOpThreads < 0 {
		return nil, fmt.Errorf("FACEGEOM_INTRA_OP_THREADS: %d is negative", c.IntraOpThreads)
	}
	if c.DetectionSize, err = strconv.Atoi(getEnv("FACEGEOM_DETECTION_SIZE", "640")); err != nil {
		return nil, fmt.Errorf("FACEGEOM_DETECTION_SIZE: %w", err)
	}
	if c.ConfThreshold, err = getFloat32("FACEGEOM_CONF_THRESHOLD", "0.5"); err != nil {
		return nil, err
	}
	if c.NMSThreshold, err = getFloat32("FACEGEOM_NMS_THRESHOLD", "0.4"); err != nil {
		return nil, err
	}
	if c.Workers, err = strconv.Atoi(getEnv("FACEGEOM_WORKERS", "1")); err != nil {
		return nil, fmt.Errorf("FACEGEOM_WORKERS: %w", err)
	}
	if c.Timeout, err = time.ParseDuration(getEnv("FACEGEOM_TIMEOUT", "0s")); err != nil {
		return nil, fmt.Errorf("FACEGEOM_TIMEOUT: %w", err)
	}
	return c, nil
}

func getEnv(k, d string) string {
	if val, ok := os.LookupEnv(k); ok {
		return val
	}
	return d
}

func getFloat32(k, d string) (float32, error) {
	v, err := strconv.ParseFloat(getEnv(k, d), 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return float32(v), nil
}
