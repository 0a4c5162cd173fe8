package detector

import (
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacedetect/internal/models"
)

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, AnchorCount(640))
	assert.Equal(t, 2100, AnchorCount(320))
}

func TestFillInput(t *testing.T) {
	img := imaging.New(8, 4, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	dst := make([]float32, 3*4*4)

	require.NoError(t, FillInput(dst, img, 4))
	assert.InDelta(t, 1.0, dst[0], 0.01)
	assert.InDelta(t, 0.0, dst[16], 0.01)
	assert.InDelta(t, 0.2, dst[32], 0.01)

	assert.Error(t, FillInput(make([]float32, 10), img, 4))
}

// output builds a [1, 4+classes, anchors] tensor from per-anchor rows of
// cx, cy, w, h, score0, score1, ...
func output(classes int, rows ...[]float32) []float32 {
	n := len(rows)
	out := make([]float32, (4+classes)*n)
	for idx, row := range rows {
		for f, v := range row {
			out[f*n+idx] = v
		}
	}
	return out
}

func TestDecode(t *testing.T) {
	raw := output(3,
		[]float32{32, 32, 16, 16, 0.1, 0.9, 0.2},
		[]float32{10, 10, 4, 4, 0.05, 0.1, 0.1},
		[]float32{48, 16, 8, 8, 0.3, 0.1, 0.6},
	)
	l := Layout{Classes: 3, Anchors: 3, InputSize: 64}

	dets, err := Decode(raw, l, 128, 64, 0.25)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, 1, dets[0].Class)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-6)
	assert.Equal(t, models.Box{X1: 48, Y1: 24, X2: 80, Y2: 40}, dets[0].Box)

	assert.Equal(t, 2, dets[1].Class)
	assert.Equal(t, image.Rect(88, 12, 104, 20), dets[1].Box.Rect())

	_, err = Decode(raw[:5], l, 128, 64, 0.25)
	assert.Error(t, err)
}

func TestNMS(t *testing.T) {
	dets := []models.Detection{
		{Class: 0, Confidence: 0.6, Box: models.Box{X1: 1, Y1: 1, X2: 11, Y2: 11}},
		{Class: 0, Confidence: 0.9, Box: models.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{Class: 1, Confidence: 0.7, Box: models.Box{X1: 0, Y1: 0, X2: 10, Y2: 10}},
		{Class: 0, Confidence: 0.5, Box: models.Box{X1: 50, Y1: 50, X2: 60, Y2: 60}},
	}

	kept := NMS(dets, 0.5)

	require.Len(t, kept, 3)
	assert.InDelta(t, 0.9, kept[0].Confidence, 1e-6)
	assert.Equal(t, 1, kept[1].Class)
	assert.InDelta(t, 0.5, kept[2].Confidence, 1e-6)
	// input order untouched
	assert.InDelta(t, 0.6, dets[0].Confidence, 1e-6)
}
