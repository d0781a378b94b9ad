package main

import (
	"testing"

	"github.com/dudu/facegeom/internal/config"
)

func TestThreadsFlagReachesSessions(t *testing.T) {
	cfg := &config.Config{LogLevel: "info"}
	root := newRootCmd(cfg)
	if err := root.PersistentFlags().Parse([]string{"--threads", "3"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.IntraOpThreads != 3 {
		t.Fatalf("IntraOpThreads = %d, want 3", cfg.IntraOpThreads)
	}

	a := &app{cfg: cfg}
	if got := a.pipelineConfig().IntraOpThreads; got != 3 {
		t.Errorf("pipeline IntraOpThreads = %d, want 3", got)
	}
	if got := a.inferenceOptions().IntraOpThreads; got != 3 {
		t.Errorf("inference IntraOpThreads = %d, want 3", got)
	}
}
