package capture

import (
	"image"

	"github.com/pkg/errors"
)

var (
	ErrDeviceUnavailable = errors.New("video device unavailable")
	ErrReadFailed        = errors.New("failed to read frame")
)

// Device is an open video device. It is owned by exactly one caller, which
// must call Release once on every exit path.
type Device interface {
	// Read blocks until the next frame is available.
	Read() (image.Image, error)
	Release() error
}

type Opener interface {
	Open(index int) (Device, error)
}

type OpenerFunc func(index int) (Device, error)

func (f OpenerFunc) Open(index int) (Device, error) { return f(index) }
