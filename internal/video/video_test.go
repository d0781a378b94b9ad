package video

import (
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")

	w, err := Create(path, "MJPG", 10, 64, 48)
	if err != nil {
		t.Skipf("no MJPG encoder in this OpenCV build: %v", err)
	}

	for i := 0; i < 5; i++ {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i*40), 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
		if err := w.Write(frame); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		frame.Close()
	}

	wrong := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	if err := w.Write(wrong); err == nil {
		t.Error("expected error for mismatched frame size")
	}
	wrong.Close()

	if w.Frames() != 5 {
		t.Errorf("Frames() = %d, want 5", w.Frames())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer r.Close()

	if r.Width() != 64 || r.Height() != 48 {
		t.Errorf("size = %dx%d, want 64x48", r.Width(), r.Height())
	}

	frame := gocv.NewMat()
	defer frame.Close()
	n := 0
	for r.Read(&frame) {
		n++
	}
	if n != 5 {
		t.Errorf("read %d frames, want 5", n)
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Error("expected error for missing file")
	}
}
