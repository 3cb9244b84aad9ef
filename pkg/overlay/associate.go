package overlay

import (
	"image"
	"math"
	"sort"

	"FaceLens/internal/entity"
)

// Associate assigns every landmark shape to exactly one record. The record whose region
// overlaps the shape's face rectangle most wins; without any overlap the nearest region
// centre does. Keys of regions are record indexes.
func Associate(regions map[int]image.Rectangle, shapes []entity.Shape) map[int][]entity.Shape {
	owned := make(map[int][]entity.Shape)
	if len(regions) == 0 {
		return owned
	}

	indexes := make([]int, 0, len(regions))
	for i := range regions {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, shape := range shapes {
		best, bestIoU := -1, 0.0
		for _, i := range indexes {
			if v := iou(regions[i], shape.Rect); v > bestIoU {
				best, bestIoU = i, v
			}
		}

		if best < 0 {
			bestDist := math.Inf(1)
			for _, i := range indexes {
				if d := centreDistance(regions[i], shape.Rect); d < bestDist {
					best, bestDist = i, d
				}
			}
		}

		owned[best] = append(owned[best], shape)
	}

	return owned
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := area(inter)
	union := area(a) + area(b) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

func area(r image.Rectangle) float64 {
	return float64(r.Dx()) * float64(r.Dy())
}

func centreDistance(a, b image.Rectangle) float64 {
	ax, ay := float64(a.Min.X+a.Max.X)/2, float64(a.Min.Y+a.Max.Y)/2
	bx, by := float64(b.Min.X+b.Max.X)/2, float64(b.Min.Y+b.Max.Y)/2
	return math.Hypot(ax-bx, ay-by)
}
