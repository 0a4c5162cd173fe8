package detector

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"spacedetect/internal/models"
)

type fakeModel struct {
	dets   []models.Detection
	err    error
	calls  int
	closed bool

	// clock and cost simulate inference time.
	clock *clock.Mock
	cost  time.Duration
}

func (m *fakeModel) Predict(_ context.Context, _ image.Image) ([]models.Detection, error) {
	m.calls++
	if m.clock != nil {
		m.clock.Add(m.cost)
	}
	return m.dets, m.err
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type fixedConfidence float32

func (f fixedConfidence) GetConfidence() float32 { return float32(f) }

func newTestAdapter(t *testing.T, m Model, conf float32) (*Adapter, *ResultStore) {
	t.Helper()
	return newTestAdapterWithClock(t, m, conf, clock.NewMock())
}

func newTestAdapterWithClock(t *testing.T, m Model, conf float32, clk clock.Clock) (*Adapter, *ResultStore) {
	t.Helper()
	table, err := models.NewClassTable(models.DefaultClassNames)
	require.NoError(t, err)

	store := NewResultStore(filepath.Join(t.TempDir(), "predict"))
	return NewAdapter(m, table, store, fixedConfidence(conf), clk, zaptest.NewLogger(t).Sugar()), store
}

func TestAdapterDetectFiltersByConfidence(t *testing.T) {
	m := &fakeModel{dets: []models.Detection{
		{Class: 0, Confidence: 0.9, Box: models.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
		{Class: 1, Confidence: 0.1, Box: models.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
		{Class: 99, Confidence: 0.5, Box: models.Box{X1: 1, Y1: 1, X2: 5, Y2: 5}},
	}}
	a, _ := newTestAdapter(t, m, 0.25)

	res, err := a.Detect(context.Background(), imaging.New(16, 16, color.Black))
	require.NoError(t, err)

	require.Len(t, res.Detections, 2)
	assert.Equal(t, 0, res.Detections[0].Class)
	assert.Equal(t, 99, res.Detections[1].Class)
	assert.Equal(t, image.Rect(0, 0, 16, 16), res.Annotated.Bounds())
}

func TestAdapterDetectError(t *testing.T) {
	a, _ := newTestAdapter(t, &fakeModel{err: errors.New("gpu on fire")}, 0.25)

	_, err := a.Detect(context.Background(), imaging.New(4, 4, color.Black))
	assert.ErrorContains(t, err, "gpu on fire")
}

func TestAdapterDetectToFileReplacesPreviousRun(t *testing.T) {
	m := &fakeModel{}
	a, store := newTestAdapter(t, m, 0.25)

	_, err := store.Save(imaging.New(4, 4, color.White), "0-stale.jpg")
	require.NoError(t, err)

	res, path, err := a.DetectToFile(context.Background(), imaging.New(12, 8, color.Black))
	require.NoError(t, err)
	assert.Empty(t, res.Detections)
	assert.Equal(t, filepath.Join(store.Dir(), ResultImageName), path)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 12, 8), img.Bounds())
}

func TestAdapterClose(t *testing.T) {
	m := &fakeModel{}
	a, _ := newTestAdapter(t, m, 0.25)

	require.NoError(t, a.Close())
	assert.True(t, m.closed)
}

func TestAdapterMeasuresLatencyOnClock(t *testing.T) {
	mock := clock.NewMock()
	m := &fakeModel{clock: mock, cost: 40 * time.Millisecond}
	a, _ := newTestAdapterWithClock(t, m, 0.25, mock)

	res, err := a.Detect(context.Background(), imaging.New(8, 8, color.Black))
	require.NoError(t, err)
	assert.Equal(t, 40*time.Millisecond, res.Latency)
}
