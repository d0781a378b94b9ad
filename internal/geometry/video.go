package geometry

import "fmt"

// Video is the geometry of a whole input, one Frame per decoded frame in
// temporal order, plus the indices of frames where no face was found.
//
// A Video is append-only while it is being extracted and read-only after.
type Video struct {
	Frames []Frame
	NoFace []int

	// noFace holds NoFace[:indexed] for HasFace. It is rebuilt when NoFace
	// changes length outside Append, which covers Videos built as literals.
	noFace  map[int]struct{}
	indexed int
}

// NewVideo returns an empty Video with room for n frames.
func NewVideo(n int) *Video {
	if n < 0 {
		n = 0
	}
	return &Video{Frames: make([]Frame, 0, n), noFace: make(map[int]struct{})}
}

// NewVideoFrom wraps decoded frames and their no-face indices. Frames listed
// in noFace are kept as they are.
func NewVideoFrom(frames []Frame, noFace []int) *Video {
	v := &Video{Frames: frames, NoFace: noFace}
	v.indexNoFace()
	return v
}

func (v *Video) indexNoFace() {
	v.noFace = make(map[int]struct{}, len(v.NoFace))
	for _, i := range v.NoFace {
		v.noFace[i] = struct{}{}
	}
	v.indexed = len(v.NoFace)
}

// Append adds the next frame. A frame without a face is stored as the
// sentinel and its index is recorded, whatever geometry was passed in.
func (v *Video) Append(f Frame, found bool) int {
	idx := len(v.Frames)
	if !found {
		f = Sentinel()
		v.NoFace = append(v.NoFace, idx)
		if v.noFace != nil && v.indexed == len(v.NoFace)-1 {
			v.noFace[idx] = struct{}{}
			v.indexed++
		}
	}
	v.Frames = append(v.Frames, f)
	return idx
}

// Len returns the number of frames.
func (v *Video) Len() int {
	return len(v.Frames)
}

// Frame returns a pointer to frame i.
func (v *Video) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(v.Frames) {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", i, len(v.Frames))
	}
	return &v.Frames[i], nil
}

// HasFace reports whether frame i carries real geometry.
func (v *Video) HasFace(i int) bool {
	if i < 0 || i >= len(v.Frames) {
		return false
	}
	if v.noFace == nil || v.indexed != len(v.NoFace) {
		v.indexNoFace()
	}
	_, missing := v.noFace[i]
	return !missing
}

// FaceCount returns the number of frames with a detected face.
func (v *Video) FaceCount() int {
	return len(v.Frames) - len(v.NoFace)
}
