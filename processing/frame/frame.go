// Package frame holds the in-memory image helpers shared by the capture,
// detection and display paths.
package frame

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// ImageExtensions are the still-image types accepted by the file dialog.
var ImageExtensions = []string{".jpg", ".jpeg", ".png"}

// Normalize returns an opaque RGB copy of img with its origin at (0, 0).
// Any alpha is composited onto black.
func Normalize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), color.Black)
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1.0)
}

// Load reads a still image from disk, honoring EXIF orientation.
func Load(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, errors.Wrapf(err, "open image %s", path)
	}
	return Normalize(img), nil
}

func Save(img image.Image, path string) error {
	return errors.Wrapf(imaging.Save(img, path, imaging.JPEGQuality(95)), "save image %s", path)
}

// Letterbox scales img to fit inside size, keeping its aspect ratio, and
// centers it on a canvas of exactly size filled with bg.
func Letterbox(img image.Image, size image.Point, bg color.Color) *image.NRGBA {
	if size.X <= 0 || size.Y <= 0 {
		return imaging.Clone(img)
	}

	canvas := imaging.New(size.X, size.Y, bg)
	b := img.Bounds()
	if b.Empty() {
		return canvas
	}

	fitted := imaging.Fit(img, size.X, size.Y, imaging.Lanczos)
	// Fit never upscales.
	if b.Dx() < size.X && b.Dy() < size.Y {
		fitted = scaleUp(img, size)
	}
	return imaging.PasteCenter(canvas, fitted)
}

func scaleUp(img image.Image, size image.Point) *image.NRGBA {
	b := img.Bounds()
	w, h := size.X, b.Dy()*size.X/b.Dx()
	if h > size.Y {
		w, h = b.Dx()*size.Y/b.Dy(), size.Y
	}
	return imaging.Resize(img, max(w, 1), max(h, 1), imaging.Lanczos)
}

// ParseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func ParseHexColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, errors.Errorf("invalid color %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.Wrapf(err, "invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
