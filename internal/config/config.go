package config

import (
	"bytes"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"spacedetect/internal/models"
)

type CameraBackend string

type ModelBackend string

const (
	CameraOpenCV CameraBackend = "opencv"
	CameraFFmpeg CameraBackend = "ffmpeg"

	ModelONNX   ModelBackend = "onnx"
	ModelRemote ModelBackend = "remote"

	DefaultConfigPath string = "config.yaml"
	DefaultResultsDir string = "runs/detect/predict"
)

// MinConfidence is the lowest confidence threshold the model is loaded with,
// so no runtime setting may go below it.
const MinConfidence = 0.1

type CameraConfig struct {
	Backend CameraBackend `yaml:"backend"`
	Index   int           `yaml:"index"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	FPS     uint          `yaml:"fps"`
}

type ModelConfig struct {
	Backend       ModelBackend `yaml:"backend"`
	Path          string       `yaml:"path"`
	SharedLibrary string       `yaml:"shared_library"`
	InputSize     int          `yaml:"input_size"`
	Confidence    float32      `yaml:"confidence"`
	IoU           float32      `yaml:"iou"`
	RemoteURL     string       `yaml:"remote_url"`
}

type DisplayConfig struct {
	Width        int           `yaml:"width"`
	Height       int           `yaml:"height"`
	Background   string        `yaml:"background"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	mu sync.RWMutex

	Camera     CameraConfig  `yaml:"camera"`
	Model      ModelConfig   `yaml:"model"`
	Classes    []string      `yaml:"classes"`
	Display    DisplayConfig `yaml:"display"`
	ResultsDir string        `yaml:"results_dir"`
	Log        LogConfig     `yaml:"log"`
}

func (c *Config) GetConfidence() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Model.Confidence
}

// SetConfidence stores v clamped to [MinConfidence, 1].
func (c *Config) SetConfidence(v float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Model.Confidence = min(max(v, MinConfidence), 1)
}

func (c *Config) GetTickInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Display.TickInterval
}

func (c *Config) SetTickInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Display.TickInterval = d
}

func (c *Config) GetCameraIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Camera.Index
}

func (c *Config) SetCameraIndex(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Camera.Index = i
}

// ClassTable builds the validated class-index mapping.
func (c *Config) ClassTable() (models.ClassTable, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.NewClassTable(c.Classes)
}

func (c *Config) Validate() error {
	if _, err := c.ClassTable(); err != nil {
		return errors.Wrap(err, "classes")
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.Camera.Backend {
	case CameraOpenCV, CameraFFmpeg:
	default:
		return errors.Errorf("unknown camera backend %q", c.Camera.Backend)
	}
	if c.Camera.Index < 0 {
		return errors.Errorf("camera index must not be negative, got %d", c.Camera.Index)
	}

	switch c.Model.Backend {
	case ModelONNX:
		if c.Model.Path == "" {
			return errors.New("model path is required for the onnx backend")
		}
		if c.Model.InputSize <= 0 || c.Model.InputSize%32 != 0 {
			return errors.Errorf("model input size must be a positive multiple of 32, got %d", c.Model.InputSize)
		}
	case ModelRemote:
		if c.Model.RemoteURL == "" {
			return errors.New("remote_url is required for the remote backend")
		}
	default:
		return errors.Errorf("unknown model backend %q", c.Model.Backend)
	}

	if c.Model.Confidence < MinConfidence || c.Model.Confidence > 1 {
		return errors.Errorf("confidence must be in [%v, 1], got %v", MinConfidence, c.Model.Confidence)
	}
	if c.Model.IoU <= 0 || c.Model.IoU > 1 {
		return errors.Errorf("iou must be in (0, 1], got %v", c.Model.IoU)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return errors.Errorf("display size must be positive, got %dx%d", c.Display.Width, c.Display.Height)
	}
	if c.Display.TickInterval <= 0 {
		return errors.Errorf("tick interval must be positive, got %v", c.Display.TickInterval)
	}

	return nil
}

func (c *Config) Save(path string) error {
	c.mu.RLock()
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	err := enc.Encode(c)
	c.mu.RUnlock()

	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, "encode config")
	}

	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "write config %s", path)
}

// LoadConfigFile reads path over the defaults. A missing file is not an
// error; the defaults are returned as is.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "read config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}

	return cfg, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		Camera: CameraConfig{
			Backend: CameraOpenCV,
			Index:   0,
			Width:   640,
			Height:  480,
			FPS:     30,
		},
		Model: ModelConfig{
			Backend:       ModelONNX,
			Path:          "best.onnx",
			SharedLibrary: "",
			InputSize:     640,
			Confidence:    0.25,
			IoU:           0.7,
			RemoteURL:     "ws://localhost:8080/ws",
		},
		Classes: append([]string(nil), models.DefaultClassNames...),
		Display: DisplayConfig{
			Width:        430,
			Height:       310,
			Background:   "#161B22",
			TickInterval: 33 * time.Millisecond,
		},
		ResultsDir: DefaultResultsDir,
		Log:        LogConfig{Level: "info"},
	}
}
