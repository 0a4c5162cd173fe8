// Package session owns the detection session: the single-shot file and
// camera paths, and the cooperative live-feed loop that shares the camera
// and the display with them.
package session

import (
	"context"
	"image"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"spacedetect/internal/models"
	"spacedetect/processing/capture"
	"spacedetect/processing/detector"
	"spacedetect/processing/frame"
	"spacedetect/processing/summary"
)

// Detector is the inference adapter as seen by the controller.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (detector.Result, error)
	DetectToFile(ctx context.Context, img image.Image) (detector.Result, string, error)
}

// Settings are read at the moment they are needed, so changes made in the
// UI apply to the next operation or tick.
type Settings interface {
	GetCameraIndex() int
	GetTickInterval() time.Duration
}

type Params struct {
	Log       *zap.SugaredLogger
	Opener    capture.Opener
	Picker    FilePicker
	Detector  Detector
	Sink      Sink
	Scheduler Scheduler
	Clock     clock.Clock
	Classes   models.ClassTable
	Settings  Settings
	// DisplaySize is the size images are padded to on screen.
	DisplaySize image.Point
	// LoadImage reads a still image; defaults to frame.Load.
	LoadImage func(path string) (image.Image, error)
}

type State struct {
	Live      bool
	HasDevice bool
}

// Controller is not safe for concurrent use. All calls, including the
// ticks it schedules, must come from one goroutine, normally a Loop.
//
// Invariant: device != nil if and only if live.
type Controller struct {
	log       *zap.SugaredLogger
	opener    capture.Opener
	picker    FilePicker
	det       Detector
	sink      Sink
	sched     Scheduler
	clock     clock.Clock
	classes   models.ClassTable
	settings  Settings
	display   image.Point
	loadImage func(path string) (image.Image, error)

	live   bool
	device capture.Device
	// gen identifies the current live session; ticks armed by an earlier
	// session see a different value and do nothing.
	gen uint64

	frames      uint
	windowStart time.Time
	fps         uint
}

func NewController(p Params) *Controller {
	c := &Controller{
		log:       p.Log,
		opener:    p.Opener,
		picker:    p.Picker,
		det:       p.Detector,
		sink:      p.Sink,
		sched:     p.Scheduler,
		clock:     p.Clock,
		classes:   p.Classes,
		settings:  p.Settings,
		display:   p.DisplaySize,
		loadImage: p.LoadImage,
	}
	if c.clock == nil {
		c.clock = clock.New()
	}
	if c.loadImage == nil {
		c.loadImage = loadStill
	}
	return c
}

func loadStill(path string) (image.Image, error) {
	img, err := frame.Load(path)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (c *Controller) State() State {
	return State{Live: c.live, HasDevice: c.device != nil}
}

// DetectFromFile asks for an image and runs one detection on it. Cancelling
// the dialog leaves the display untouched.
func (c *Controller) DetectFromFile(ctx context.Context) {
	path, err := c.picker.PickImage(ctx)
	if errors.Is(err, ErrCancelled) || (err == nil && path == "") {
		c.log.Debug("image selection cancelled")
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.Warnw("file dialog failed", "error", err)
		c.stopIfLive()
		c.sink.Clear()
		c.sink.ShowText(MsgImageLoadFailed)
		return
	}

	c.stopIfLive()
	c.sink.Clear()

	img, err := c.loadImage(path)
	if err != nil {
		c.log.Warnw("could not load image", "path", path, "error", err)
		c.sink.ShowText(MsgImageLoadFailed)
		return
	}

	c.log.Infow("detecting objects in file", "path", path)
	c.detectSnapshot(ctx, frame.Normalize(img))
}

// DetectFromCamera grabs exactly one frame and runs one detection on it.
// The device is released before anything is rendered.
func (c *Controller) DetectFromCamera(ctx context.Context) {
	c.stopIfLive()
	c.sink.Clear()

	index := c.settings.GetCameraIndex()
	dev, err := c.opener.Open(index)
	if err != nil {
		c.log.Warnw("could not open camera", "index", index, "error", err)
		c.sink.ShowText(MsgDeviceUnavailable)
		return
	}

	img, err := dev.Read()
	c.release(dev)
	if err != nil {
		c.log.Warnw("could not capture frame", "index", index, "error", err)
		c.sink.ShowText(MsgCaptureFailed)
		return
	}

	c.log.Infow("detecting objects in camera snapshot", "index", index)
	c.detectSnapshot(ctx, img)
}

func (c *Controller) detectSnapshot(ctx context.Context, img image.Image) {
	res, path, err := c.det.DetectToFile(ctx, img)
	if err != nil {
		c.log.Warnw("detection failed", "error", err)
		c.sink.ShowText(MsgDetectionFailed)
		return
	}

	c.sink.SetActionLabel(ActionFile, LabelFileAgain)
	c.sink.SetActionLabel(ActionCamera, LabelCameraAgain)

	if path == "" {
		c.sink.ShowText(MsgNoResultImage)
		return
	}

	text := c.summarize(res.Detections)
	shown, err := c.loadImage(path)
	if err != nil {
		c.log.Warnw("could not load result image", "path", path, "error", err)
		text = MsgImageLoadFailed + "\n" + text
	} else {
		c.sink.ShowImage(shown, c.display)
	}
	c.sink.ShowText(text)
}

// ToggleLive starts the live feed when at rest and stops it otherwise.
func (c *Controller) ToggleLive(_ context.Context) {
	if c.live {
		c.StopLive()
		return
	}

	c.sink.Clear()

	index := c.settings.GetCameraIndex()
	dev, err := c.opener.Open(index)
	if err != nil {
		c.log.Warnw("could not open camera", "index", index, "error", err)
		c.sink.ShowText(MsgDeviceUnavailable)
		return
	}

	c.live, c.device = true, dev
	c.gen++
	c.frames, c.fps, c.windowStart = 0, 0, c.clock.Now()

	c.sink.SetActionLabel(ActionLive, LabelLiveStop)
	c.log.Infow("live feed started", "index", index)
	c.schedule(0)
}

// StopLive returns the session to rest and clears the display. It is safe
// to call at any time.
func (c *Controller) StopLive() {
	wasLive := c.rest()

	c.sink.SetActionLabel(ActionLive, LabelLiveStart)
	c.sink.Clear()

	if wasLive {
		c.log.Info("live feed stopped")
	}
}

// Shutdown returns the session to rest without touching the display, for
// use once the window is gone.
func (c *Controller) Shutdown() {
	if c.rest() {
		c.log.Info("live feed stopped on shutdown")
	}
}

func (c *Controller) rest() (wasLive bool) {
	wasLive = c.live
	c.live = false
	if c.device != nil {
		c.release(c.device)
		c.device = nil
	}
	return wasLive
}

func (c *Controller) stopIfLive() {
	if c.live {
		c.StopLive()
	}
}

func (c *Controller) release(dev capture.Device) {
	if err := dev.Release(); err != nil {
		c.log.Warnw("releasing camera failed", "error", err)
	}
}

func (c *Controller) schedule(d time.Duration) {
	gen := c.gen
	c.sched.After(d, func(ctx context.Context) {
		c.tick(ctx, gen)
	})
}

// tick processes one live frame and re-arms itself. A tick that is already
// running completes its frame before a stop takes effect.
func (c *Controller) tick(ctx context.Context, gen uint64) {
	if !c.live || c.device == nil || gen != c.gen {
		return
	}

	start := c.clock.Now()

	img, err := c.device.Read()
	if err != nil {
		c.log.Warnw("live read failed", "error", err)
		c.StopLive()
		c.sink.ShowText(MsgLiveReadFailed)
		return
	}

	res, err := c.det.Detect(ctx, img)
	if err != nil {
		c.log.Warnw("live detection failed", "error", err)
		c.StopLive()
		c.sink.ShowText(MsgDetectionFailed)
		return
	}

	c.sink.ShowImage(res.Annotated, c.display)
	c.sink.ShowText(c.summarize(res.Detections))
	c.updateStats(start)

	c.log.Debugw("live frame", "detections", len(res.Detections), "inference", res.Latency)

	c.schedule(c.settings.GetTickInterval())
}

func (c *Controller) updateStats(start time.Time) {
	now := c.clock.Now()

	c.frames++
	if elapsed := now.Sub(c.windowStart); elapsed >= time.Second {
		c.fps = uint(float64(c.frames)/elapsed.Seconds() + 0.5)
		c.frames, c.windowStart = 0, now
	}

	c.sink.ShowStats(Stats{FPS: c.fps, Latency: now.Sub(start)})
}

func (c *Controller) summarize(dets []models.Detection) string {
	s := summary.Summarize(dets, c.classes)
	if unknown := s.Unknown(); len(unknown) > 0 {
		c.log.Debugw("detections outside the class table", "entries", unknown)
	}
	return s.String()
}
