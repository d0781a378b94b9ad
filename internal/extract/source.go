package extract

import "gocv.io/x/gocv"

// SliceSource serves frames from memory. The frames stay owned by the caller.
type SliceSource struct {
	Frames []gocv.Mat
	pos    int
}

// Read copies the next frame into dst.
func (s *SliceSource) Read(dst *gocv.Mat) bool {
	if s.pos >= len(s.Frames) {
		return false
	}
	s.Frames[s.pos].CopyTo(dst)
	s.pos++
	return true
}

// FrameCount returns the number of frames.
func (s *SliceSource) FrameCount() int {
	return len(s.Frames)
}
