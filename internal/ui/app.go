package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"spacedetect/internal/config"
	"spacedetect/internal/ui/cwidget"
	"spacedetect/processing/capture"
	"spacedetect/processing/frame"
	"spacedetect/processing/session"
)

const windowTitle = "Space Station Safety Detector"

// DetectApp is the desktop window. It renders for the session controller
// and forwards button presses to it through the session loop.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window
	log     *zap.SugaredLogger

	config     *config.Config
	configPath string
	background color.Color

	loop *session.Loop
	ctrl *session.Controller

	imageCanvas  *canvas.Image
	summaryLabel *widget.Label
	latencyLabel *widget.Label
	fpsLabel     *widget.Label
	buttons      map[session.Action]*widget.Button
}

func CreateApp(cfg *config.Config, configPath string, log *zap.SugaredLogger) (*DetectApp, error) {
	bg, err := frame.ParseHexColor(cfg.Display.Background)
	if err != nil {
		return nil, err
	}

	a := app.New()
	w := a.NewWindow(windowTitle)
	w.Resize(fyne.NewSize(960, 600))

	d := &DetectApp{
		fyneApp:    a,
		mainWin:    w,
		log:        log,
		config:     cfg,
		configPath: configPath,
		background: bg,
	}

	d.imageCanvas = canvas.NewImageFromImage(nil)
	d.imageCanvas.FillMode = canvas.ImageFillContain
	d.imageCanvas.SetMinSize(fyne.NewSize(float32(cfg.Display.Width), float32(cfg.Display.Height)))

	d.summaryLabel = widget.NewLabel("")
	d.summaryLabel.Wrapping = fyne.TextWrapWord
	d.latencyLabel = widget.NewLabel(formatLatency(0))
	d.fpsLabel = widget.NewLabel(formatFPS(0))

	return d, nil
}

// Bind attaches the controller and the loop that drives it. It must be
// called before Run.
func (a *DetectApp) Bind(loop *session.Loop, ctrl *session.Controller) {
	a.loop = loop
	a.ctrl = ctrl
}

func (a *DetectApp) Run() {
	a.buttons = map[session.Action]*widget.Button{
		session.ActionFile: widget.NewButtonWithIcon(session.LabelFile, theme.FolderOpenIcon(), func() {
			a.post(a.ctrl.DetectFromFile)
		}),
		session.ActionCamera: widget.NewButtonWithIcon(session.LabelCamera, theme.MediaPhotoIcon(), func() {
			a.post(a.ctrl.DetectFromCamera)
		}),
		session.ActionLive: widget.NewButtonWithIcon(session.LabelLiveStart, theme.MediaVideoIcon(), func() {
			a.post(a.ctrl.ToggleLive)
		}),
	}

	title := widget.NewLabelWithStyle(windowTitle, fyne.TextAlignCenter, fyne.TextStyle{Bold: true})

	actions := container.NewVBox(
		a.buttons[session.ActionFile],
		a.buttons[session.ActionCamera],
		a.buttons[session.ActionLive],
	)

	display := container.NewBorder(
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.latencyLabel),
		container.NewVScroll(a.summaryLabel),
		nil, nil,
		a.imageCanvas,
	)

	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Detection", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		actions,
		widget.NewSeparator(),
		a.settings(),
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(display),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(container.NewBorder(title, nil, nil, nil, split))

	a.mainWin.SetCloseIntercept(func() {
		a.saveConfig()
		a.fyneApp.Quit()
	})

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// Quit closes the window from any goroutine.
func (a *DetectApp) Quit() {
	fyne.Do(a.fyneApp.Quit)
}

func (a *DetectApp) post(task session.Task) {
	if !a.loop.Post(task) {
		a.log.Debug("session loop closed, ignoring action")
	}
}

func (a *DetectApp) saveConfig() {
	if err := a.config.Save(a.configPath); err != nil {
		a.log.Warnw("could not save config", "path", a.configPath, "error", err)
		return
	}
	a.log.Infow("config saved", "path", a.configPath)
}

func (a *DetectApp) settings() fyne.CanvasObject {
	confidence := cwidget.NewFloatInput(
		"Confidence",
		fmt.Sprintf("%g - 1", config.MinConfidence),
		float64(a.config.GetConfidence()),
		config.MinConfidence, 1,
		func(v float64) {
			a.config.SetConfidence(float32(v))
		},
	)

	interval := cwidget.NewIntInput(
		"Live interval (ms)",
		"Enter integer",
		int(a.config.GetTickInterval().Milliseconds()),
		1, 1000,
		func(ms int) {
			a.config.SetTickInterval(time.Duration(ms) * time.Millisecond)
		},
	)

	saveBtn := widget.NewButtonWithIcon("Save config", theme.DocumentSaveIcon(), func() {
		if err := a.config.Save(a.configPath); err != nil {
			dialog.ShowError(err, a.mainWin)
		}
	})

	return container.NewVBox(
		widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabel("Camera:"),
		a.cameraSelect(),
		confidence,
		interval,
		saveBtn,
	)
}

func (a *DetectApp) cameraSelect() *widget.Select {
	const loading = "Loading cameras..."

	var devices []string
	deviceSelect := widget.NewSelect([]string{loading}, nil)
	deviceSelect.SetSelected(loading)
	deviceSelect.Disable()

	go func() {
		found, err := capture.ListCameras()

		fyne.Do(func() {
			switch {
			case err != nil:
				a.log.Warnw("could not list cameras", "error", err)
				deviceSelect.Options = []string{"Error listing cameras"}
			case len(found) == 0:
				deviceSelect.Options = []string{"No cameras found"}
			default:
				devices = found
				deviceSelect.Options = found
				deviceSelect.OnChanged = func(s string) {
					for i, name := range devices {
						if name == s {
							a.config.SetCameraIndex(i)
							return
						}
					}
				}
				deviceSelect.Enable()

				index := a.config.GetCameraIndex()
				if index < 0 || index >= len(found) {
					index = 0
				}
				deviceSelect.SetSelected(found[index])
			}
			deviceSelect.Refresh()
		})
	}()

	return deviceSelect
}

func formatFPS(v uint) string {
	return fmt.Sprintf("FPS: %d", v)
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

// ShowImage letterboxes img to size and displays it.
func (a *DetectApp) ShowImage(img image.Image, size image.Point) {
	padded := frame.Letterbox(img, size, a.background)

	fyne.Do(func() {
		a.imageCanvas.Image = padded
		a.imageCanvas.Refresh()
	})
}

func (a *DetectApp) ShowText(text string) {
	fyne.Do(func() {
		a.summaryLabel.SetText(text)
	})
}

func (a *DetectApp) Clear() {
	fyne.Do(func() {
		a.imageCanvas.Image = nil
		a.imageCanvas.Refresh()
		a.summaryLabel.SetText("")
		a.fpsLabel.SetText(formatFPS(0))
		a.latencyLabel.SetText(formatLatency(0))
	})
}

func (a *DetectApp) SetActionLabel(action session.Action, label string) {
	fyne.Do(func() {
		if btn, ok := a.buttons[action]; ok {
			btn.SetText(label)
		}
	})
}

func (a *DetectApp) ShowStats(s session.Stats) {
	fyne.Do(func() {
		a.fpsLabel.SetText(formatFPS(s.FPS))
		a.latencyLabel.SetText(formatLatency(s.Latency))
	})
}

// PickImage shows a file dialog filtered to still images and waits for the
// user. Closing the dialog yields session.ErrCancelled.
func (a *DetectApp) PickImage(ctx context.Context) (string, error) {
	type choice struct {
		path string
		err  error
	}
	picked := make(chan choice, 1)

	fyne.Do(func() {
		open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
			switch {
			case err != nil:
				picked <- choice{err: err}
			case reader == nil:
				picked <- choice{err: session.ErrCancelled}
			default:
				path := reader.URI().Path()
				if cerr := reader.Close(); cerr != nil {
					a.log.Debugw("closing picked file", "error", cerr)
				}
				picked <- choice{path: path}
			}
		}, a.mainWin)
		open.SetFilter(storage.NewExtensionFileFilter(frame.ImageExtensions))
		open.Show()
	})

	select {
	case c := <-picked:
		return c.path, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
