package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.DetectionSize != 640 || c.Workers != 1 || c.Timeout != 0 || c.IntraOpThreads != 0 {
		t.Errorf("unexpected defaults: %+v", c)
	}
	if c.ConfThreshold != 0.5 || c.NMSThreshold != 0.4 {
		t.Errorf("thresholds = %v, %v", c.ConfThreshold, c.NMSThreshold)
	}
	if c.EnhancerModel != "models/gfpgan_1.4.onnx" {
		t.Errorf("EnhancerModel = %q", c.EnhancerModel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FACEGEOM_WORKERS", "4")
	t.Setenv("FACEGEOM_TIMEOUT", "250ms")
	t.Setenv("FACEGEOM_COREML", "true")
	t.Setenv("FACEGEOM_OUTPUT_DIR", "/tmp/geo")
	t.Setenv("FACEGEOM_INTRA_OP_THREADS", "6")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Workers != 4 || c.Timeout != 250*time.Millisecond || !c.UseCoreML || c.OutputDir != "/tmp/geo" || c.IntraOpThreads != 6 {
		t.Errorf("Load() = %+v", c)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"FACEGEOM_WORKERS", "many"},
		{"FACEGEOM_TIMEOUT", "soon"},
		{"FACEGEOM_CONF_THRESHOLD", "high"},
		{"FACEGEOM_COREML", "maybe"},
		{"FACEGEOM_INTRA_OP_THREADS", "all"},
		{"FACEGEOM_INTRA_OP_THREADS", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
