package artifact

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/dudu/facegeom/internal/geometry"
	"github.com/dudu/facegeom/internal/oval"
)

// File names inside an artifact directory.
const (
	GeometryFile = "video_landmarks.npy"
	NoFaceFile   = "no_face_index.txt"
	OrderFile    = "face_route_index.npy"
)

// WriteGeometry writes frames as a float64 array of shape (N, 486, 2).
func WriteGeometry(w io.Writer, frames []geometry.Frame) error {
	row := reflect.TypeOf([geometry.NumPoints][2]float64{})
	return writeArray(w, len(frames), row, func(i int, v reflect.Value) {
		pts := v.Addr().Interface().(*[geometry.NumPoints][2]float64)
		for j, p := range frames[i] {
			pts[j] = [2]float64{p.X, p.Y}
		}
	})
}

// ReadGeometry reads a (N, 486, 2) float64 array.
func ReadGeometry(r io.Reader) ([]geometry.Frame, error) {
	nr, n, err := openArray(r, descrFloat64, geometry.NumPoints, 2)
	if err != nil {
		return nil, errors.Wrap(err, "read geometry")
	}

	var data []float64
	if err := readData(nr, &data); err != nil {
		return nil, errors.Wrap(err, "read geometry")
	}
	if len(data) != n*geometry.NumPoints*2 {
		return nil, fmt.Errorf("%w: geometry holds %d values, want %d", ErrFormat, len(data), n*geometry.NumPoints*2)
	}

	frames := make([]geometry.Frame, n)
	for i := range frames {
		base := i * geometry.NumPoints * 2
		for j := range frames[i] {
			frames[i][j] = geometry.Point{X: data[base+2*j], Y: data[base+2*j+1]}
		}
	}
	return frames, nil
}

// WriteOrder writes a traversal order as an int64 array of shape (N, 2).
func WriteOrder(w io.Writer, order []oval.Edge) error {
	return writeArray(w, len(order), reflect.TypeOf([2]int64{}), func(i int, v reflect.Value) {
		*v.Addr().Interface().(*[2]int64) = [2]int64{int64(order[i].From), int64(order[i].To)}
	})
}

// ReadOrder reads a (N, 2) int64 traversal order and checks that it chains.
func ReadOrder(r io.Reader) ([]oval.Edge, error) {
	nr, n, err := openArray(r, descrInt64, 2)
	if err != nil {
		return nil, errors.Wrap(err, "read order")
	}

	var data []int64
	if err := readData(nr, &data); err != nil {
		return nil, errors.Wrap(err, "read order")
	}
	if len(data) != 2*n {
		return nil, fmt.Errorf("%w: order holds %d values, want %d", ErrFormat, len(data), 2*n)
	}

	order := make([]oval.Edge, n)
	for i := range order {
		order[i] = oval.Edge{From: int(data[2*i]), To: int(data[2*i+1])}
	}
	if err := oval.Validate(order); err != nil {
		return nil, err
	}
	return order, nil
}

// WriteNoFace writes one frame index per line.
func WriteNoFace(w io.Writer, indices []int) error {
	bw := bufio.NewWriter(w)
	for _, i := range indices {
		if _, err := fmt.Fprintf(bw, "%d\n", i); err != nil {
			return errors.Wrap(err, "write no-face index")
		}
	}
	return errors.Wrap(bw.Flush(), "flush no-face index")
}

// ReadNoFace reads a list written by WriteNoFace. Blank lines are ignored.
func ReadNoFace(r io.Reader) ([]int, error) {
	var indices []int
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		i, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not a frame index", ErrFormat, line, text)
		}
		indices = append(indices, i)
	}
	return indices, errors.Wrap(sc.Err(), "read no-face index")
}

// SaveVideo writes the geometry array and the no-face list into dir.
func SaveVideo(dir string, v *geometry.Video) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	if err := writeFile(filepath.Join(dir, GeometryFile), func(w io.Writer) error {
		return WriteGeometry(w, v.Frames)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, NoFaceFile), func(w io.Writer) error {
		return WriteNoFace(w, v.NoFace)
	})
}

// LoadVideo reads the geometry array and the no-face list from dir. A missing
// no-face list is treated as empty.
func LoadVideo(dir string) (*geometry.Video, error) {
	f, err := os.Open(filepath.Join(dir, GeometryFile))
	if err != nil {
		return nil, errors.Wrap(err, "open geometry")
	}
	defer f.Close()

	frames, err := ReadGeometry(f)
	if err != nil {
		return nil, err
	}

	nf, err := os.Open(filepath.Join(dir, NoFaceFile))
	if os.IsNotExist(err) {
		return geometry.NewVideoFrom(frames, nil), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open no-face index")
	}
	defer nf.Close()

	noFace, err := ReadNoFace(nf)
	if err != nil {
		return nil, err
	}
	for _, i := range noFace {
		if i < 0 || i >= len(frames) {
			return nil, fmt.Errorf("%w: no-face index %d outside %d frames", ErrFormat, i, len(frames))
		}
	}
	return geometry.NewVideoFrom(frames, noFace), nil
}

// SaveOrder writes the traversal order into dir.
func SaveOrder(dir string, order []oval.Edge) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	return writeFile(filepath.Join(dir, OrderFile), func(w io.Writer) error {
		return WriteOrder(w, order)
	})
}

// LoadOrder reads the traversal order from dir.
func LoadOrder(dir string) ([]oval.Edge, error) {
	f, err := os.Open(filepath.Join(dir, OrderFile))
	if err != nil {
		return nil, errors.Wrap(err, "open order")
	}
	defer f.Close()
	return ReadOrder(f)
}

// writeFile writes through a temporary file and renames it into place.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename %s", path)
}
