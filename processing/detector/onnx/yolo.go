// Package onnx runs a YOLOv8 detector exported to ONNX through onnxruntime.
package onnx

import (
	"context"
	"image"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/multierr"

	"spacedetect/internal/models"
	"spacedetect/processing/detector"
)

type Yolo struct {
	ModelPath           string
	SharedLibraryPath   string
	InputSize           int
	ConfidenceThreshold float32
	IouThreshold        float32

	mu      sync.Mutex
	layout  detector.Layout
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

type YoloOption func(*Yolo) error

func WithModelPath(path string) YoloOption {
	return func(y *Yolo) error {
		if path == "" {
			return errors.New("empty model path")
		}
		y.ModelPath = path
		return nil
	}
}

func WithSharedLibraryPath(path string) YoloOption {
	return func(y *Yolo) error {
		y.SharedLibraryPath = path
		return nil
	}
}

func WithInputSize(size int) YoloOption {
	return func(y *Yolo) error {
		if size <= 0 || size%32 != 0 {
			return errors.Errorf("input size %d is not a positive multiple of 32", size)
		}
		y.InputSize = size
		return nil
	}
}

func WithThresholds(confidence, iou float32) YoloOption {
	return func(y *Yolo) error {
		y.ConfidenceThreshold = confidence
		y.IouThreshold = iou
		return nil
	}
}

func NewYolo(opts ...YoloOption) (*Yolo, error) {
	yolo := &Yolo{
		ModelPath:           "./best.onnx",
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		IouThreshold:        0.7,
	}

	for _, opt := range opts {
		if err := opt(yolo); err != nil {
			return nil, err
		}
	}
	if err := yolo.initSession(); err != nil {
		return nil, err
	}
	return yolo, nil
}

func (y *Yolo) initSession() error {
	if y.SharedLibraryPath != "" {
		ort.SetSharedLibraryPath(y.SharedLibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "initialize onnxruntime")
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(y.ModelPath)
	if err != nil {
		return errors.Wrapf(err, "inspect model %s", y.ModelPath)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return errors.Errorf("model %s has %d inputs and %d outputs, want 1 and 1", y.ModelPath, len(inputs), len(outputs))
	}

	layout, err := layoutFromShape(outputs[0].Dimensions, y.InputSize)
	if err != nil {
		return errors.Wrapf(err, "model %s", y.ModelPath)
	}
	y.layout = layout

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(y.InputSize), int64(y.InputSize)))
	if err != nil {
		return errors.Wrap(err, "create input tensor")
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+layout.Classes), int64(layout.Anchors)))
	if err != nil {
		inputTensor.Destroy()
		return errors.Wrap(err, "create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(y.ModelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor},
		options)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return errors.Wrap(err, "create session")
	}

	y.session = session
	y.input = inputTensor
	y.output = outputTensor
	return nil
}

// layoutFromShape reads [batch, 4+classes, anchors]; a dynamic anchor
// dimension is derived from the input size.
func layoutFromShape(dims ort.Shape, inputSize int) (detector.Layout, error) {
	if len(dims) != 3 {
		return detector.Layout{}, errors.Errorf("output shape %v is not [batch, 4+classes, anchors]", dims)
	}
	classes := int(dims[1]) - 4
	if classes <= 0 {
		return detector.Layout{}, errors.Errorf("output shape %v has no class scores", dims)
	}
	anchors := int(dims[2])
	if anchors <= 0 {
		anchors = detector.AnchorCount(inputSize)
	}
	return detector.Layout{Classes: classes, Anchors: anchors, InputSize: inputSize}, nil
}

// Classes is the size of the model's own label space.
func (y *Yolo) Classes() int { return y.layout.Classes }

func (y *Yolo) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	y.mu.Lock()
	defer y.mu.Unlock()

	if y.session == nil {
		return nil, errors.New("model is closed")
	}

	if err := detector.FillInput(y.input.GetData(), img, y.InputSize); err != nil {
		return nil, err
	}
	if err := y.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run session")
	}

	b := img.Bounds()
	dets, err := detector.Decode(y.output.GetData(), y.layout, b.Dx(), b.Dy(), y.ConfidenceThreshold)
	if err != nil {
		return nil, err
	}
	return detector.NMS(dets, y.IouThreshold), nil
}

func (y *Yolo) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.session == nil {
		return nil
	}
	err := multierr.Combine(
		y.session.Destroy(),
		y.input.Destroy(),
		y.output.Destroy(),
		ort.DestroyEnvironment(),
	)
	y.session, y.input, y.output = nil, nil, nil
	return err
}
