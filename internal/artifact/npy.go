// Package artifact reads and writes the persisted outputs of extraction:
// the geometry array, the no-face index list and the oval traversal order.
//
// Arrays use the NumPy .npy format (little-endian, C order) so the
// artifacts stay interchangeable with the rest of the toolchain.
package artifact

import (
	"fmt"
	"io"
	"math"
	"os"
	"reflect"

	"github.com/pkg/errors"
	"github.com/sbinet/npyio"
)

// ErrFormat is returned for artifacts that cannot be decoded.
var ErrFormat = errors.New("invalid artifact format")

const (
	descrFloat64 = "<f8"
	descrInt64   = "<i8"

	// maxElements caps the allocation for readers whose size is unknown.
	maxElements = 1 << 27
)

// writeArray writes n rows of elem as one C-ordered array. npyio derives the
// shape from nested Go arrays, so [n][486][2]float64 lands as (n, 486, 2).
func writeArray(w io.Writer, n int, elem reflect.Type, fill func(i int, row reflect.Value)) error {
	arr := reflect.New(reflect.ArrayOf(n, elem)).Elem()
	for i := 0; i < n; i++ {
		fill(i, arr.Index(i))
	}
	return errors.Wrap(npyio.Write(w, arr.Interface()), "write npy")
}

// openArray parses the header of r and checks the dtype and the trailing
// dimensions. It returns the reader positioned at the data and the row count.
func openArray(r io.Reader, descr string, rowShape ...int) (*npyio.Reader, int, error) {
	size, sized := readerSize(r)

	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	hdr := nr.Header.Descr
	if hdr.Type != descr {
		return nil, 0, fmt.Errorf("%w: dtype %s, want %s", ErrFormat, hdr.Type, descr)
	}
	if hdr.Fortran {
		return nil, 0, fmt.Errorf("%w: fortran-ordered arrays are not supported", ErrFormat)
	}
	if len(hdr.Shape) != len(rowShape)+1 {
		return nil, 0, fmt.Errorf("%w: shape %v, want (N, %v)", ErrFormat, hdr.Shape, rowShape)
	}
	for i, d := range rowShape {
		if hdr.Shape[i+1] != d {
			return nil, 0, fmt.Errorf("%w: shape %v, want (N, %v)", ErrFormat, hdr.Shape, rowShape)
		}
	}

	rows := hdr.Shape[0]
	perRow := 1
	for _, d := range rowShape {
		perRow *= d
	}
	if rows < 0 || rows > maxElements/perRow {
		return nil, 0, fmt.Errorf("%w: %d rows exceed the %d element limit", ErrFormat, rows, maxElements)
	}
	// Every element is 8 bytes; a header promising more than the input holds
	// is rejected before anything is allocated.
	if sized && int64(rows)*int64(perRow)*8 > size {
		return nil, 0, fmt.Errorf("%w: %d rows need %d bytes, input has %d",
			ErrFormat, rows, int64(rows)*int64(perRow)*8, size)
	}
	return nr, rows, nil
}

// readData reads the array body into dst, reporting short input as ErrFormat.
func readData(nr *npyio.Reader, dst any) error {
	if err := nr.Read(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return nil
}

// readerSize reports how many bytes r holds in total, when r can tell.
func readerSize(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case interface{ Len() int }:
		return int64(v.Len()), true
	case *os.File:
		fi, err := v.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return 0, false
		}
		return fi.Size(), true
	}
	return math.MaxInt64, false
}
