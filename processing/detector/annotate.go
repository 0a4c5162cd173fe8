package detector

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"spacedetect/internal/models"
)

const boxThickness = 3

var (
	palette = []color.NRGBA{
		{R: 0xff, G: 0x38, B: 0x38, A: 0xff},
		{R: 0x00, G: 0xc2, B: 0xff, A: 0xff},
		{R: 0xff, G: 0xb2, B: 0x1d, A: 0xff},
	}
	unknownColor = color.NRGBA{R: 0xb0, G: 0x84, B: 0xcc, A: 0xff}
	labelText    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

func classColor(class int, table models.ClassTable) color.NRGBA {
	if _, ok := table.Name(class); !ok {
		return unknownColor
	}
	return palette[class%len(palette)]
}

// Annotate returns a copy of img with every detection boxed and labeled.
func Annotate(img image.Image, dets []models.Detection, table models.ClassTable) *image.NRGBA {
	out := imaging.Clone(img)

	for _, d := range dets {
		col := classColor(d.Class, table)
		r := d.Box.Rect()
		drawRect(out, r, col)
		drawLabel(out, fmt.Sprintf("%s %.2f", table.Label(d.Class), d.Confidence), r.Min, col)
	}
	return out
}

func drawRect(img *image.NRGBA, r image.Rectangle, col color.Color) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if (image.Point{x, y}).In(bounds) {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := r.Min.X; x <= r.Max.X; x++ {
			setPixel(x, r.Min.Y+t)
			setPixel(x, r.Max.Y-t)
		}
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			setPixel(r.Min.X+t, y)
			setPixel(r.Max.X-t, y)
		}
	}
}

// drawLabel draws text on a filled tag just above at, or just inside the
// box when there is no room above.
func drawLabel(img *image.NRGBA, text string, at image.Point, bg color.Color) {
	face := basicfont.Face7x13
	const pad = 2

	width := font.MeasureString(face, text).Ceil() + 2*pad
	height := face.Height + 2*pad

	tag := image.Rect(at.X, at.Y-height, at.X+width, at.Y)
	if tag.Min.Y < img.Bounds().Min.Y {
		tag = tag.Add(image.Pt(0, height))
	}
	draw.Draw(img, tag.Intersect(img.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(labelText),
		Face: face,
		Dot:  fixed.P(tag.Min.X+pad, tag.Min.Y+pad+face.Ascent),
	}
	d.DrawString(text)
}
