package detector

import (
	"image"
	"sort"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"spacedetect/internal/models"
)

// AnchorCount is the number of YOLOv8 candidate boxes for a square input
// of the given size (strides 8, 16 and 32).
func AnchorCount(inputSize int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		g := inputSize / stride
		n += g * g
	}
	return n
}

// FillInput resizes img to size x size and writes it into dst as planar
// RGB floats in [0, 1].
func FillInput(dst []float32, img image.Image, size int) error {
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return errors.Errorf("input tensor holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	scaled := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := scaled.Bounds()

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := scaled.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return nil
}

// Layout describes a YOLOv8 output tensor of shape [1, 4+Classes, Anchors].
type Layout struct {
	Classes   int
	Anchors   int
	InputSize int
}

// Decode turns a raw YOLOv8 output into detections in the coordinates of a
// frame of frameW x frameH. Candidates below minConfidence are dropped.
func Decode(output []float32, l Layout, frameW, frameH int, minConfidence float32) ([]models.Detection, error) {
	if need := (4 + l.Classes) * l.Anchors; len(output) < need {
		return nil, errors.Errorf("output holds %d floats, layout needs %d", len(output), need)
	}

	sx := float32(frameW) / float32(l.InputSize)
	sy := float32(frameH) / float32(l.InputSize)
	n := l.Anchors

	var dets []models.Detection
	for idx := 0; idx < n; idx++ {
		classID, best := -1, float32(-1e9)
		for c := 0; c < l.Classes; c++ {
			if p := output[n*(c+4)+idx]; p > best {
				best, classID = p, c
			}
		}
		if best < minConfidence {
			continue
		}

		xc, yc := output[idx], output[n+idx]
		w, h := output[2*n+idx], output[3*n+idx]

		dets = append(dets, models.Detection{
			Class:      classID,
			Confidence: best,
			Box: models.Box{
				X1: (xc - w/2) * sx,
				Y1: (yc - h/2) * sy,
				X2: (xc + w/2) * sx,
				Y2: (yc + h/2) * sy,
			},
		})
	}
	return dets, nil
}

// NMS keeps the highest-confidence box of every group of same-class boxes
// overlapping by more than iouThreshold. The result is ordered by
// descending confidence.
func NMS(dets []models.Detection, iouThreshold float32) []models.Detection {
	sorted := append([]models.Detection(nil), dets...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]models.Detection, 0, len(sorted))
	for _, cand := range sorted {
		overlaps := false
		for _, k := range kept {
			if k.Class == cand.Class && cand.Box.IoU(k.Box) > iouThreshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, cand)
		}
	}
	return kept
}
