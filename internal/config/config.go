// Package config loads fingertrain settings from defaults, an optional YAML
// file and FINGERTRAIN_* environment variables, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/fingertrain/internal/capture"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/game"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/publish"
	"github.com/ayusman/fingertrain/internal/scene"
	"github.com/ayusman/fingertrain/internal/telemetry"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "FINGERTRAIN_"

// Default values for Config.
const (
	DefaultLogLevel     = "info"
	DefaultThreshold    = 25.0
	DefaultFrameHz      = 60
	DefaultServerAddr   = "127.0.0.1:8080"
	DefaultWindowTitle  = "fingertrain"
	DefaultWindowWidth  = 960
	DefaultWindowHeight = 540
)

// Config is the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	Camera     capture.Config   `yaml:"camera" envPrefix:"CAMERA_"`
	Detector   detector.Config  `yaml:"detector" envPrefix:"DETECTOR_"`
	Classifier ClassifierConfig `yaml:"classifier" envPrefix:"CLASSIFIER_"`
	Scene      scene.Config     `yaml:"scene" envPrefix:"SCENE_"`
	Assets     scene.Sources    `yaml:"assets" envPrefix:"ASSETS_"`
	Frame      FrameConfig      `yaml:"frame" envPrefix:"FRAME_"`
	Window     WindowConfig     `yaml:"window" envPrefix:"WINDOW_"`
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Publish    publish.Config   `yaml:"publish" envPrefix:"PUBLISH_"`
	Telemetry  telemetry.Config `yaml:"telemetry" envPrefix:"TELEMETRY_"`
	Overlay    bool             `yaml:"overlay" env:"OVERLAY"`
	Tray       bool             `yaml:"tray" env:"TRAY"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// ClassifierConfig holds the finger extension threshold in degrees.
type ClassifierConfig struct {
	Threshold float64 `yaml:"threshold" env:"THRESHOLD"`
}

// FrameConfig controls the headless frame pump.
type FrameConfig struct {
	Hz int `yaml:"hz" env:"HZ"`
	// Ticks stops a headless run after this many frames; 0 runs until
	// interrupted.
	Ticks    uint64 `yaml:"ticks" env:"TICKS"`
	Headless bool   `yaml:"headless" env:"HEADLESS"`
}

// WindowConfig holds desktop window settings.
type WindowConfig struct {
	Title  string `yaml:"title" env:"TITLE"`
	Width  int    `yaml:"width" env:"WIDTH"`
	Height int    `yaml:"height" env:"HEIGHT"`
}

// ServerConfig holds HTTP server settings. An empty Addr disables the server.
type ServerConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	StaticDir string `yaml:"static_dir" env:"STATIC_DIR"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	session := game.DefaultConfig()
	return Config{
		Log:        LogConfig{Level: DefaultLogLevel},
		Camera:     session.Camera,
		Detector:   session.Detector,
		Classifier: ClassifierConfig{Threshold: DefaultThreshold},
		Scene:      session.Scene,
		Frame:      FrameConfig{Hz: DefaultFrameHz},
		Window: WindowConfig{
			Title:  DefaultWindowTitle,
			Width:  DefaultWindowWidth,
			Height: DefaultWindowHeight,
		},
		Server:    ServerConfig{Addr: DefaultServerAddr},
		Publish:   publish.Config{Topic: publish.DefaultTopic},
		Telemetry: telemetry.Config{ServiceName: "fingertrain"},
		Overlay:   true,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that all config values are usable.
func Validate(cfg *Config) error {
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return ValidationError{Field: "log.level", Message: err.Error()}
	}
	if cfg.Camera.Width <= 0 || cfg.Camera.Height <= 0 {
		return ValidationError{Field: "camera", Message: "width and height must be positive"}
	}
	if cfg.Detector.MaxHands <= 0 {
		return ValidationError{Field: "detector.max_hands", Message: "must be positive"}
	}
	if cfg.Classifier.Threshold <= 0 || cfg.Classifier.Threshold >= 180 {
		return ValidationError{Field: "classifier.threshold", Message: "must be between 0 and 180 degrees"}
	}
	if cfg.Scene.Step < 0 {
		return ValidationError{Field: "scene.step", Message: "must not be negative"}
	}
	if cfg.Frame.Hz <= 0 || cfg.Frame.Hz > 1000 {
		return ValidationError{Field: "frame.hz", Message: "must be between 1 and 1000"}
	}
	if cfg.Window.Width <= 0 || cfg.Window.Height <= 0 {
		return ValidationError{Field: "window", Message: "width and height must be positive"}
	}
	if cfg.Publish.Endpoint != "" && cfg.Publish.Topic == "" {
		return ValidationError{Field: "publish.topic", Message: "required when publish.endpoint is set"}
	}
	return nil
}

// LogLevel returns the parsed log level. Validate has already rejected bad
// names, so unknown values fall back to info.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// Session returns the settings for a game session.
func (c *Config) Session() game.Config {
	return game.Config{
		Camera:    c.Camera,
		Detector:  c.Detector,
		Threshold: c.Classifier.Threshold,
		Scene:     c.Scene,
		Assets:    c.Assets,
		Overlay:   c.Overlay,
	}
}

// Headless returns the windowless frame pump settings.
func (c *Config) Headless() frame.HeadlessConfig {
	return frame.HeadlessConfig{Hz: c.Frame.Hz, Frames: c.Frame.Ticks}
}
