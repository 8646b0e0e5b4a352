package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/fer-stream/internal/face"
)

// Config holds the service settings.
type Config struct {
	Addr          string           `yaml:"addr"`
	MaxFrameBytes int64            `yaml:"max_frame_bytes"`
	CacheTTL      time.Duration    `yaml:"cache_ttl"`
	LogLevel      string           `yaml:"log_level"`
	Stream        StreamConfig     `yaml:"stream"`
	Detector      DetectorConfig   `yaml:"detector"`
	Classifier    ClassifierConfig `yaml:"classifier"`
}

// StreamConfig contains WebSocket keepalive settings.
type StreamConfig struct {
	PingPeriod time.Duration `yaml:"ping_period"`
	PongWait   time.Duration `yaml:"pong_wait"`
}

// DetectorConfig selects and tunes the face locator.
type DetectorConfig struct {
	Backend       string        `yaml:"backend"` // pigo, remote
	CascadePath   string        `yaml:"cascade_path"`
	MinConfidence float64       `yaml:"min_confidence"`
	MinSize       int           `yaml:"min_size"`
	MaxSize       int           `yaml:"max_size"`
	ShiftFactor   float64       `yaml:"shift_factor"`
	ScaleFactor   float64       `yaml:"scale_factor"`
	IoUThreshold  float64       `yaml:"iou_threshold"`
	RemoteURL     string        `yaml:"remote_url"`
	RemoteTimeout time.Duration `yaml:"remote_timeout"`
	// RemoteMinConfidence is a probability, unlike the pigo score above.
	RemoteMinConfidence float64 `yaml:"remote_min_confidence"`
}

// ClassifierConfig locates the emotion model.
type ClassifierConfig struct {
	ModelPath    string `yaml:"model_path"`
	MetadataPath string `yaml:"metadata_path"`
	LibraryPath  string `yaml:"library_path"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Addr:          ":8000",
		MaxFrameBytes: 10 << 20,
		LogLevel:      "info",
		Stream: StreamConfig{
			PingPeriod: 30 * time.Second,
			PongWait:   60 * time.Second,
		},
		Detector: DetectorConfig{
			Backend:       face.BackendPigo,
			CascadePath:   "models/facefinder",
			MinConfidence: 5.0,
			MinSize:       40,
			MaxSize:       1000,
			ShiftFactor:   0.1,
			ScaleFactor:   1.1,
			IoUThreshold:  0.2,
			RemoteTimeout: 5 * time.Second,

			RemoteMinConfidence: 0.5,
		},
		Classifier: ClassifierConfig{
			ModelPath:    "models/emotion_model.onnx",
			MetadataPath: "models/model_metadata.json",
		},
	}
}

// Load reads the optional YAML file at path over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + port
	}

	c.Classifier.ModelPath = getEnv("FER_MODEL_PATH", c.Classifier.ModelPath)
	c.Classifier.MetadataPath = getEnv("FER_METADATA_PATH", c.Classifier.MetadataPath)
	c.Classifier.LibraryPath = getEnv("FER_ORT_LIBRARY", c.Classifier.LibraryPath)
	c.Detector.CascadePath = getEnv("FER_CASCADE_PATH", c.Detector.CascadePath)
	c.Detector.RemoteURL = getEnv("FER_DETECTOR_URL", c.Detector.RemoteURL)
	c.LogLevel = getEnv("FER_LOG_LEVEL", c.LogLevel)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.MaxFrameBytes <= 0 {
		errs = append(errs, errors.New("max_frame_bytes must be > 0"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.Stream.PingPeriod <= 0 || c.Stream.PongWait <= c.Stream.PingPeriod {
		errs = append(errs, errors.New("stream: pong_wait must exceed ping_period > 0"))
	}

	switch c.Detector.Backend {
	case face.BackendPigo:
		if c.Detector.CascadePath == "" {
			errs = append(errs, errors.New("detector: cascade_path required for pigo"))
		}
		if c.Detector.MinSize <= 0 || c.Detector.MaxSize < c.Detector.MinSize {
			errs = append(errs, errors.New("detector: need 0 < min_size <= max_size"))
		}
		if c.Detector.ShiftFactor <= 0 || c.Detector.ScaleFactor <= 1 {
			errs = append(errs, errors.New("detector: shift_factor must be > 0 and scale_factor > 1"))
		}
	case face.BackendRemote:
		if c.Detector.RemoteURL == "" {
			errs = append(errs, errors.New("detector: remote_url required for remote"))
		}
		if c.Detector.RemoteMinConfidence < 0 || c.Detector.RemoteMinConfidence > 1 {
			errs = append(errs, errors.New("detector: remote_min_confidence must be within [0, 1]"))
		}
	default:
		errs = append(errs, fmt.Errorf("detector: unknown backend %q", c.Detector.Backend))
	}

	if c.Classifier.ModelPath == "" {
		errs = append(errs, errors.New("classifier: model_path required"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	return nil
}
