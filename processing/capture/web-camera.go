package capture

import (
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// stderrLimit bounds how much of ffmpeg's diagnostics is kept per device.
const stderrLimit = 4 << 10

// FFmpeg opens webcams by piping rawvideo out of an ffmpeg process.
type FFmpeg struct {
	Width     int
	Height    int
	TargetFPS uint

	// Devices resolves a camera index to an ffmpeg input name. Defaults to
	// ListCameras.
	Devices func() ([]string, error)
}

func (f FFmpeg) Open(index int) (Device, error) {
	list := f.Devices
	if list == nil {
		list = ListCameras
	}

	devices, err := list()
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "list cameras: %v", err)
	}
	if index < 0 || index >= len(devices) {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "camera %d not found", index)
	}

	ws := &ffmpegDevice{
		width:  f.Width,
		height: f.Height,
		cmd:    exec.Command("ffmpeg", ffmpegArgs(runtime.GOOS, devices[index], f.TargetFPS, f.Width, f.Height)...),
		stderr: &tailWriter{limit: stderrLimit},
	}
	ws.cmd.Stderr = ws.stderr

	stdout, err := ws.cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "ffmpeg pipe: %v", err)
	}
	if err := ws.cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrDeviceUnavailable, "ffmpeg start: %v", err)
	}
	ws.stdout = stdout

	return ws, nil
}

func ffmpegArgs(goos, device string, fps uint, width, height int) []string {
	args := []string{"-nostats", "-loglevel", "error"}
	if goos == "windows" {
		args = append(args, "-f", "dshow", "-i", fmt.Sprintf("video=%s", device))
	} else {
		args = append(args, "-f", "v4l2", "-i", device)
	}

	return append(args,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fps, width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

type ffmpegDevice struct {
	releaseOnce sync.Once

	width  int
	height int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailWriter
}

func (ws *ffmpegDevice) Read() (image.Image, error) {
	buf := make([]byte, ws.width*ws.height*4)
	if _, err := io.ReadFull(ws.stdout, buf); err != nil {
		return nil, errors.Wrapf(ErrReadFailed, "%v: %s", err, ws.stderr.String())
	}

	rgba := &image.RGBA{
		Pix:    buf,
		Stride: ws.width * 4,
		Rect:   image.Rect(0, 0, ws.width, ws.height),
	}
	return rgba, nil
}

func (ws *ffmpegDevice) Release() error {
	var err error
	ws.releaseOnce.Do(func() {
		err = ws.stdout.Close()
		if ws.cmd.Process == nil {
			return
		}

		if kerr := ws.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = multierr.Append(err, kerr)
		}
		// An exit status here is the kill above or ffmpeg having already
		// failed, which Read reported.
		var exitErr *exec.ExitError
		if werr := ws.cmd.Wait(); werr != nil && !errors.As(werr, &exitErr) {
			err = multierr.Append(err, werr)
		}
	})
	return err
}

// tailWriter keeps the last limit bytes written to it. It is written by the
// exec copy goroutine and read by Read.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}
