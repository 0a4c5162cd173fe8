package capture

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installFakeFFmpeg puts a shell script named ffmpeg first on PATH.
func installFakeFFmpeg(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake ffmpeg is a shell script")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func fakeCamera(width, height int) FFmpeg {
	return FFmpeg{
		Width:     width,
		Height:    height,
		TargetFPS: 30,
		Devices: func() ([]string, error) {
			return []string{"/dev/video0"}, nil
		},
	}
}

func TestFFmpegReadsRawFrames(t *testing.T) {
	// One 2x1 frame: a red pixel then a blue one.
	installFakeFFmpeg(t, `printf '\377\000\000\377\000\000\377\377'
exec sleep 5`)

	dev, err := fakeCamera(2, 1).Open(0)
	require.NoError(t, err)

	img, err := dev.Read()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, img.At(0, 0))
	assert.Equal(t, color.RGBA{B: 0xff, A: 0xff}, img.At(1, 0))

	assert.NoError(t, dev.Release())
	assert.NoError(t, dev.Release())
}

func TestFFmpegReadFailsWhileStderrFloods(t *testing.T) {
	installFakeFFmpeg(t, `exec 1>&-
i=0
while [ $i -lt 3000 ]; do
	echo "frame=$i fps=30 q=-0.0 size=N/A time=00:00:01.00 bitrate=N/A speed=1x" >&2
	i=$((i+1))
done
exec sleep 5`)

	dev, err := fakeCamera(4, 4).Open(0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = dev.Read()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrReadFailed))
	}

	require.NoError(t, dev.Release())

	tail := dev.(*ffmpegDevice).stderr.String()
	assert.LessOrEqual(t, len(tail), stderrLimit)
}

func TestTailWriterKeepsLatestBytes(t *testing.T) {
	w := &tailWriter{limit: 8}

	n, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, "23456789", w.String())

	_, err = w.Write([]byte("ab"))
	require.NoError(t, err)
	assert.Equal(t, "456789ab", w.String())

	_, err = w.Write([]byte(strings.Repeat("x", 20)))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("x", 8), w.String())
}
