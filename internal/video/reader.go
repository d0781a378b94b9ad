// Package video decodes frames from files or cameras and encodes them back
// to files.
package video

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Reader yields BGR frames from a video file or capture device
type Reader struct {
	capture    *gocv.VideoCapture
	source     string
	fps        float64
	frameCount int
	width      int
	height     int
	mu         sync.Mutex
}

// Open opens a video file for decoding
func Open(path string) (*Reader, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video %s: %w", path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("failed to open video %s", path)
	}
	return newReader(capture, path), nil
}

// OpenDevice opens a capture device at the requested resolution
func OpenDevice(deviceID int, width, height int) (*Reader, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", deviceID, err)
	}

	// Set camera properties
	capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(height))

	return newReader(capture, fmt.Sprintf("device %d", deviceID)), nil
}

func newReader(capture *gocv.VideoCapture, source string) *Reader {
	// Get actual properties (device may not support what was requested)
	return &Reader{
		capture:    capture,
		source:     source,
		fps:        capture.Get(gocv.VideoCaptureFPS),
		frameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Read decodes the next frame into the provided Mat
func (r *Reader) Read(frame *gocv.Mat) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture == nil {
		return false
	}

	return r.capture.Read(frame) && !frame.Empty()
}

// FrameCount returns the container's frame count, or 0 when unknown
func (r *Reader) FrameCount() int {
	if r.frameCount < 0 {
		return 0
	}
	return r.frameCount
}

// FPS returns the nominal frame rate
func (r *Reader) FPS() float64 {
	return r.fps
}

// Width returns frame width
func (r *Reader) Width() int {
	return r.width
}

// Height returns frame height
func (r *Reader) Height() int {
	return r.height
}

// Source describes where frames come from
func (r *Reader) Source() string {
	return r.source
}

// Close releases the capture
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture != nil {
		err := r.capture.Close()
		r.capture = nil
		return err
	}
	return nil
}
