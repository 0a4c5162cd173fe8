// Package detector wraps the object-detection model behind a frame-in,
// detections-out call and renders the annotated result.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"spacedetect/internal/models"
)

// ResultImageName is the file the single-shot paths save their annotated
// frame as.
const ResultImageName = "image0.jpg"

// Model is the pretrained detector.
type Model interface {
	Predict(ctx context.Context, img image.Image) ([]models.Detection, error)
	Close() error
}

type Result struct {
	Detections []models.Detection
	Annotated  *image.NRGBA
	Latency    time.Duration
}

// Thresholds supplies the confidence cut-off at call time so it can be
// tuned while the application runs.
type Thresholds interface {
	GetConfidence() float32
}

type Adapter struct {
	model   Model
	classes models.ClassTable
	store   *ResultStore
	limits  Thresholds
	clock   clock.Clock
	log     *zap.SugaredLogger
}

func NewAdapter(model Model, classes models.ClassTable, store *ResultStore, limits Thresholds, clk clock.Clock, log *zap.SugaredLogger) *Adapter {
	return &Adapter{
		model:   model,
		classes: classes,
		store:   store,
		limits:  limits,
		clock:   clk,
		log:     log,
	}
}

// Detect runs the model on img in memory.
func (a *Adapter) Detect(ctx context.Context, img image.Image) (Result, error) {
	start := a.clock.Now()

	raw, err := a.model.Predict(ctx, img)
	if err != nil {
		return Result{}, errors.Wrap(err, "predict")
	}

	minConf := a.limits.GetConfidence()
	dets := make([]models.Detection, 0, len(raw))
	for _, d := range raw {
		if d.Confidence < minConf {
			continue
		}
		if _, ok := a.classes.Name(d.Class); !ok {
			a.log.Warnw("model returned a class index outside the class table",
				"class", d.Class, "classes", a.classes.Len(), "confidence", d.Confidence)
		}
		dets = append(dets, d)
	}

	return Result{
		Detections: dets,
		Annotated:  Annotate(img, dets, a.classes),
		Latency:    a.clock.Since(start),
	}, nil
}

// DetectToFile runs Detect and stores the annotated frame in the result
// directory, replacing the previous run's output. The returned path is the
// image the store now offers for display, or "" when nothing viewable was
// produced.
func (a *Adapter) DetectToFile(ctx context.Context, img image.Image) (Result, string, error) {
	if err := a.store.Clear(); err != nil {
		a.log.Warnw("could not clear previous results", "dir", a.store.Dir(), "error", err)
	}

	res, err := a.Detect(ctx, img)
	if err != nil {
		return Result{}, "", err
	}

	if _, err := a.store.Save(res.Annotated, ResultImageName); err != nil {
		a.log.Warnw("could not save result image", "error", err)
	}

	path, err := a.store.ResultImage()
	if err != nil {
		a.log.Warnw("could not list result images", "error", err)
		return res, "", nil
	}
	return res, path, nil
}

func (a *Adapter) Close() error {
	return a.model.Close()
}
