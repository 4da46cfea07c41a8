package detector

import (
	"math"
	"sort"

	"github.com/dudu/augcam/internal/geometry"
)

// NMS performs non-maximum suppression: faces are sorted by descending
// score and any face overlapping a better one by more than iouThreshold is
// dropped. The input slice is reordered.
func NMS(faces []FaceFeature, iouThreshold float64) []FaceFeature {
	if len(faces) == 0 {
		return faces
	}

	sort.SliceStable(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})

	keep := make([]bool, len(faces))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(faces); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(faces); j++ {
			if !keep[j] {
				continue
			}
			if IoU(faces[i].Bounds, faces[j].Bounds) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := make([]FaceFeature, 0, len(faces))
	for i, face := range faces {
		if keep[i] {
			result = append(result, face)
		}
	}
	return result
}

// IoU returns the intersection over union of two rects in the same space.
func IoU(a, b geometry.Rect) float64 {
	x1 := math.Max(a.MinX(), b.MinX())
	y1 := math.Max(a.MinY(), b.MinY())
	x2 := math.Min(a.MaxX(), b.MaxX())
	y2 := math.Min(a.MaxY(), b.MaxY())

	if x1 >= x2 || y1 >= y2 {
		return 0
	}

	intersection := (x2 - x1) * (y2 - y1)
	union := a.Width*a.Height + b.Width*b.Height - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
