// Package opencv provides the gocv webcam backend.
package opencv

import (
	"image"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"spacedetect/processing/capture"
	"spacedetect/processing/frame"
)

// Opener opens webcams through gocv.
type Opener struct{}

func (Opener) Open(index int) (capture.Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, errors.Wrapf(capture.ErrDeviceUnavailable, "camera %d: %v", index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Wrapf(capture.ErrDeviceUnavailable, "camera %d is not opened", index)
	}

	return &cvDevice{vc: vc, mat: gocv.NewMat()}, nil
}

type cvDevice struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (d *cvDevice) Read() (image.Image, error) {
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, capture.ErrReadFailed
	}

	// ToImage converts from OpenCV's BGR layout.
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(capture.ErrReadFailed, err.Error())
	}
	return frame.Normalize(img), nil
}

func (d *cvDevice) Release() error {
	return multierr.Combine(d.mat.Close(), d.vc.Close())
}
