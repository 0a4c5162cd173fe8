package models

import (
	"image"
	"math"
)

// Detection is one object found by the model in a single frame.
type Detection struct {
	Class      int     `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Box is an axis-aligned box in pixel coordinates of the source frame.
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(float64(b.X1))),
		int(math.Round(float64(b.Y1))),
		int(math.Round(float64(b.X2))),
		int(math.Round(float64(b.Y2))),
	).Canon()
}

func (b Box) Area() float32 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection over union of two boxes.
func (b Box) IoU(other Box) float32 {
	ix1 := max(b.X1, other.X1)
	iy1 := max(b.Y1, other.Y1)
	ix2 := min(b.X2, other.X2)
	iy2 := min(b.Y2, other.Y2)

	inter := Box{ix1, iy1, ix2, iy2}.Area()
	union := b.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
