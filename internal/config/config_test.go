package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	table, err := cfg.ClassTable()
	require.NoError(t, err)
	assert.Equal(t, []string{"FireExtinguisher", "ToolBox", "OxygenTank"}, table.Names())
	assert.Equal(t, 33*time.Millisecond, cfg.GetTickInterval())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultConfig().Model.Path, cfg.Model.Path)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
camera:
  backend: ffmpeg
  index: 2
model:
  backend: remote
  remote_url: ws://detector:9000/ws
  confidence: 0.4
display:
  tick_interval: 50ms
`), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, CameraFFmpeg, cfg.Camera.Backend)
	assert.Equal(t, 2, cfg.GetCameraIndex())
	assert.Equal(t, ModelRemote, cfg.Model.Backend)
	assert.InDelta(t, 0.4, cfg.GetConfidence(), 1e-6)
	assert.Equal(t, 50*time.Millisecond, cfg.GetTickInterval())
	// untouched sections keep their defaults
	assert.Equal(t, 430, cfg.Display.Width)
	assert.Len(t, cfg.Classes, 3)
}

func TestLoadRejectsInvalidClasses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classes: [a, a]\n"), 0o644))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"camera backend": func(c *Config) { c.Camera.Backend = "v4l" },
		"negative index": func(c *Config) { c.Camera.Index = -1 },
		"model backend":  func(c *Config) { c.Model.Backend = "tflite" },
		"input size":     func(c *Config) { c.Model.InputSize = 100 },
		"confidence":     func(c *Config) { c.Model.Confidence = 0 },
		"iou":            func(c *Config) { c.Model.IoU = 1.5 },
		"display":        func(c *Config) { c.Display.Width = 0 },
		"tick":           func(c *Config) { c.Display.TickInterval = 0 },
		"remote url":     func(c *Config) { c.Model.Backend = ModelRemote; c.Model.RemoteURL = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := NewDefaultConfig()
	cfg.SetConfidence(0.6)
	cfg.SetTickInterval(40 * time.Millisecond)
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, loaded.GetConfidence(), 1e-6)
	assert.Equal(t, 40*time.Millisecond, loaded.GetTickInterval())
}

func TestConfidenceBoundsSurviveReload(t *testing.T) {
	tests := []struct {
		name string
		set  float32
		want float32
	}{
		{name: "zero clamps to floor", set: 0, want: MinConfidence},
		{name: "floor", set: MinConfidence, want: MinConfidence},
		{name: "one", set: 1, want: 1},
		{name: "above one", set: 1.5, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")

			cfg := NewDefaultConfig()
			cfg.SetConfidence(tt.set)
			assert.InDelta(t, tt.want, cfg.GetConfidence(), 1e-6)
			require.NoError(t, cfg.Save(path))

			loaded, err := LoadConfigFile(path)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, loaded.GetConfidence(), 1e-6)
		})
	}
}
