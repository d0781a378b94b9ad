package enhancer

import (
	"image"
	"testing"
)

func TestSquareCrop(t *testing.T) {
	tests := []struct {
		name string
		box  image.Rectangle
		want image.Rectangle
	}{
		{"centred", image.Rect(40, 40, 60, 60), image.Rect(35, 35, 65, 65)},
		{"tall box becomes square", image.Rect(45, 30, 55, 70), image.Rect(20, 20, 80, 80)},
		{"clipped at edge", image.Rect(0, 0, 20, 20), image.Rect(0, 0, 25, 25)},
		{"empty", image.Rectangle{}, image.Rectangle{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := squareCrop(tt.box, 100, 100); got != tt.want {
				t.Errorf("squareCrop(%v) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}

func TestTensorToImage(t *testing.T) {
	const size = 2
	plane := size * size
	out := make([]float32, 3*plane)
	// pixel 0: pure red, pixel 3: out-of-range blue
	out[0] = 1
	out[plane+0] = -1
	out[2*plane+0] = -1
	out[3] = -1
	out[plane+3] = -1
	out[2*plane+3] = 5

	img, err := tensorToImage(out, size)
	if err != nil {
		t.Fatal(err)
	}
	defer img.Close()

	if v := img.GetVecbAt(0, 0); v[0] != 0 || v[1] != 0 || v[2] != 255 {
		t.Errorf("pixel 0 = %v, want BGR red", v)
	}
	if v := img.GetVecbAt(1, 1); v[0] != 255 || v[2] != 0 {
		t.Errorf("pixel 3 = %v, want clamped BGR blue", v)
	}
	// zero maps to mid grey
	if v := img.GetVecbAt(0, 1); v[1] != 128 {
		t.Errorf("pixel 1 green = %d, want 128", v[1])
	}

	if _, err := tensorToImage(out[:5], size); err == nil {
		t.Error("expected error for short tensor")
	}
}
