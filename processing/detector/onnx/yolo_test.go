package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestLayoutFromShape(t *testing.T) {
	l, err := layoutFromShape(ort.NewShape(1, 7, 8400), 640)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Classes)
	assert.Equal(t, 8400, l.Anchors)

	l, err = layoutFromShape(ort.NewShape(1, 7, -1), 320)
	require.NoError(t, err)
	assert.Equal(t, 2100, l.Anchors)

	_, err = layoutFromShape(ort.NewShape(1, 4, 8400), 640)
	assert.Error(t, err)
	_, err = layoutFromShape(ort.NewShape(7, 8400), 640)
	assert.Error(t, err)
}

func TestOptionsValidate(t *testing.T) {
	y := &Yolo{}
	assert.Error(t, WithInputSize(100)(y))
	assert.Error(t, WithModelPath("")(y))

	require.NoError(t, WithInputSize(320)(y))
	require.NoError(t, WithThresholds(0.1, 0.5)(y))
	assert.Equal(t, 320, y.InputSize)
	assert.InDelta(t, 0.1, y.ConfidenceThreshold, 1e-6)
}
