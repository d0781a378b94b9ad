package detector

import (
	"math"
	"sort"

	"github.com/dudu/facegeom/internal/geometry"
)

// suppress runs greedy non-maximum suppression and returns the survivors best
// score first; faces[0] is the detection the extractor stores. Ties keep
// detection order. Boxes with no area or a NaN score never survive, since
// their box would be written into the geometry buffer. The input is not
// reordered.
func suppress(faces []Face, iouThreshold float64) []Face {
	ranked := make([]Face, 0, len(faces))
	for _, f := range faces {
		if f.BoundingBox.Width() <= 0 || f.BoundingBox.Height() <= 0 || math.IsNaN(float64(f.Score)) {
			continue
		}
		ranked = append(ranked, f)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	boxes := make([]geometry.Box, len(ranked))
	for i := range ranked {
		boxes[i] = ranked[i].BoundingBox.Box()
	}

	kept := ranked[:0]
	keptBoxes := make([]geometry.Box, 0, len(ranked))
next:
	for i, f := range ranked {
		for _, k := range keptBoxes {
			if iou(k, boxes[i]) > iouThreshold {
				continue next
			}
		}
		kept = append(kept, f)
		keptBoxes = append(keptBoxes, boxes[i])
	}
	return kept
}

// iou is the intersection over union of two pixel boxes.
func iou(a, b geometry.Box) float64 {
	w := math.Min(a.X+a.Width, b.X+b.Width) - math.Max(a.X, b.X)
	h := math.Min(a.Y+a.Height, b.Y+b.Height) - math.Max(a.Y, b.Y)
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := w * h
	union := a.Width*a.Height + b.Width*b.Height - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
