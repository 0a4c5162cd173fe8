package cwidget

import (
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/pkg/errors"
)

// Input is a labelled entry that only reports values its Validator accepts.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
	Format    func(T) string
}

func newInput[T any](label, placeholder string, defaultValue T, format func(T) string, validator func(string) (T, error), onChanged func(T)) *Input[T] {
	input := &Input[T]{
		LabelText:    label,
		Placeholder:  placeholder,
		DefaultValue: defaultValue,
		OnChanged:    onChanged,
		Validator:    validator,
		Format:       format,
	}

	input.labelWidget = widget.NewLabel(input.caption(defaultValue))
	input.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	input.entryWidget = widget.NewEntry()
	input.entryWidget.SetPlaceHolder(placeholder)

	input.errorWidget = widget.NewLabel("")
	input.errorWidget.Hidden = true
	input.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	input.errorWidget.Importance = widget.DangerImportance

	input.entryWidget.OnChanged = func(s string) {
		res, err := input.Validator(s)
		input.SetError(err)

		if err == nil {
			if input.OnChanged != nil {
				input.OnChanged(res)
			}
			input.labelWidget.SetText(input.caption(res))
		}
	}

	input.ExtendBaseWidget(input)

	return input
}

func (item *Input[T]) caption(v T) string {
	return item.LabelText + ": " + item.Format(v)
}

func NewIntInput(label, placeholder string, defaultValue, lo, hi int, onChanged func(int)) *Input[int] {
	return newInput(label, placeholder, defaultValue, strconv.Itoa, IntValidator(defaultValue, lo, hi), onChanged)
}

func NewFloatInput(label, placeholder string, defaultValue, lo, hi float64, onChanged func(float64)) *Input[float64] {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return newInput(label, placeholder, defaultValue, format, FloatValidator(defaultValue, lo, hi), onChanged)
}

// IntValidator accepts integers in [lo, hi]. An empty entry means the
// default.
func IntValidator(defaultValue, lo, hi int) func(string) (int, error) {
	return func(s string) (int, error) {
		if s == "" {
			return defaultValue, nil
		}

		res, err := strconv.Atoi(s)
		if err != nil {
			return defaultValue, errors.New("not an integer")
		}
		if res < lo || res > hi {
			return defaultValue, errors.Errorf("must be between %d and %d", lo, hi)
		}
		return res, nil
	}
}

// FloatValidator accepts numbers in [lo, hi]. An empty entry means the
// default.
func FloatValidator(defaultValue, lo, hi float64) func(string) (float64, error) {
	return func(s string) (float64, error) {
		if s == "" {
			return defaultValue, nil
		}

		res, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return defaultValue, errors.New("not a number")
		}
		if res < lo || res > hi {
			return defaultValue, errors.Errorf("must be between %g and %g", lo, hi)
		}
		return res, nil
	}
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}
