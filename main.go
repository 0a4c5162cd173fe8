// Command spacedetect is a desktop detector for space station safety
// equipment. It runs a YOLOv8 model on chosen images, single webcam
// snapshots, or a live webcam feed.
package main

import (
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"spacedetect/internal/config"
	"spacedetect/internal/logging"
	"spacedetect/internal/models"
	"spacedetect/internal/ui"
	"spacedetect/processing/capture"
	"spacedetect/processing/capture/opencv"
	"spacedetect/processing/detector"
	"spacedetect/processing/detector/onnx"
	"spacedetect/processing/session"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
)

func main() {
	app := &cli.App{
		Name:  "spacedetect",
		Usage: "detect fire extinguishers, toolboxes and oxygen tanks in images and webcam video",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   config.DefaultConfigPath,
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override the configured log level (debug, info, warn, error)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) (err error) {
	cfgPath := c.String(flagConfig)
	cfg, err := config.LoadConfigFile(cfgPath)
	if err != nil {
		return err
	}
	if lvl := c.String(flagLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	classes, err := cfg.ClassTable()
	if err != nil {
		return err
	}

	model, err := newModel(cfg, classes, log)
	if err != nil {
		return errors.Wrap(err, "load model")
	}
	clk := clock.New()
	adapter := detector.NewAdapter(model, classes, detector.NewResultStore(cfg.ResultsDir), cfg, clk, log.Named("detector"))
	defer func() {
		err = multierr.Append(err, adapter.Close())
	}()

	window, err := ui.CreateApp(cfg, cfgPath, log.Named("ui"))
	if err != nil {
		return err
	}

	loop := session.NewLoop(clk, log.Named("loop"))
	ctrl := session.NewController(session.Params{
		Log:         log.Named("session"),
		Opener:      newOpener(cfg),
		Picker:      window,
		Detector:    adapter,
		Sink:        window,
		Scheduler:   loop,
		Clock:       clk,
		Classes:     classes,
		Settings:    cfg,
		DisplaySize: image.Pt(cfg.Display.Width, cfg.Display.Height),
	})
	window.Bind(loop, ctrl)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	closed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Info("interrupted, closing window")
			window.Quit()
		case <-closed:
		}
	}()

	log.Infow("starting", "config", cfgPath, "model", cfg.Model.Backend, "camera", cfg.Camera.Backend)

	loop.Start()
	defer func() {
		// The loop goroutine has exited once Close returns, so the
		// controller can be shut down from here.
		loop.Close()
		ctrl.Shutdown()
		log.Info("stopped")
	}()

	window.Run()
	close(closed)
	return nil
}

func newModel(cfg *config.Config, classes models.ClassTable, log *zap.SugaredLogger) (detector.Model, error) {
	if cfg.Model.Backend == config.ModelRemote {
		remote, err := detector.NewRemoteModel(cfg.Model.RemoteURL, log.Named("remote"))
		if err != nil {
			return nil, err
		}
		return remote, nil
	}

	yolo, err := onnx.NewYolo(
		onnx.WithModelPath(cfg.Model.Path),
		onnx.WithSharedLibraryPath(cfg.Model.SharedLibrary),
		onnx.WithInputSize(cfg.Model.InputSize),
		// The configured confidence is applied per call by the adapter.
		onnx.WithThresholds(config.MinConfidence, cfg.Model.IoU),
	)
	if err != nil {
		return nil, err
	}
	if n := yolo.Classes(); n != classes.Len() {
		log.Warnw("model and class table disagree; extra indices are reported as unknown",
			"model_classes", n, "table_classes", classes.Len())
	}
	return yolo, nil
}

func newOpener(cfg *config.Config) capture.Opener {
	if cfg.Camera.Backend == config.CameraFFmpeg {
		return capture.FFmpeg{
			Width:     cfg.Camera.Width,
			Height:    cfg.Camera.Height,
			TargetFPS: cfg.Camera.FPS,
		}
	}
	return opencv.Opener{}
}
