package session

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
)

// ErrCancelled is returned by a FilePicker when the user closes the dialog
// without choosing a file.
var ErrCancelled = errors.New("cancelled")

type Action int

const (
	ActionFile Action = iota
	ActionCamera
	ActionLive
)

const (
	LabelFile        = "SELECT IMAGE"
	LabelFileAgain   = "Select Next Image"
	LabelCamera      = "CAPTURE"
	LabelCameraAgain = "Capture Again"
	LabelLiveStart   = "Live Video Feed Detection"
	LabelLiveStop    = "Stop Live Video Feed Detection"
)

const (
	MsgDeviceUnavailable = "Could not open webcam."
	MsgCaptureFailed     = "Failed to capture image from camera."
	MsgNoResultImage     = "No result image found."
	MsgImageLoadFailed   = "Error loading image."
	MsgLiveReadFailed    = "Live feed stopped: could not read from webcam."
	MsgDetectionFailed   = "Detection failed."
)

type Stats struct {
	FPS     uint
	Latency time.Duration
}

// Sink is where the controller renders. Implementations must be safe to
// call from the controller's goroutine and must not block on the UI.
type Sink interface {
	ShowImage(img image.Image, size image.Point)
	ShowText(text string)
	// Clear removes the displayed image and text.
	Clear()
	SetActionLabel(a Action, label string)
	ShowStats(s Stats)
}

type FilePicker interface {
	// PickImage blocks until the user has chosen a file or cancelled.
	PickImage(ctx context.Context) (string, error)
}
