package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/fingertrain/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fingertrain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultThreshold, cfg.Classifier.Threshold)
	assert.Equal(t, DefaultFrameHz, cfg.Frame.Hz)
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.InDelta(t, 0.01, cfg.Scene.Step, 1e-12)
	assert.True(t, cfg.Overlay)
	assert.False(t, cfg.Tray)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel())
}

func TestLoad_PartialFile(t *testing.T) {
	path := writeConfig(t, `classifier:
  threshold: 30
frame:
  hz: 30
  ticks: 120
  headless: true
scene:
  step: 0.05
assets:
  model: assets/train.glb
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Classifier.Threshold)
	assert.Equal(t, 30, cfg.Frame.Hz)
	assert.True(t, cfg.Frame.Headless)
	assert.Equal(t, 0.05, cfg.Scene.Step)
	assert.Equal(t, "assets/train.glb", cfg.Assets.Model)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultServerAddr, cfg.Server.Addr)
	assert.Equal(t, 2.0, cfg.Scene.CameraOffset.Y)

	h := cfg.Headless()
	assert.Equal(t, 30, h.Hz)
	assert.Equal(t, uint64(120), h.Frames)

	s := cfg.Session()
	assert.Equal(t, 30.0, s.Threshold)
	assert.Equal(t, "assets/train.glb", s.Assets.Model)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: 127.0.0.1:9000\n")
	t.Setenv("FINGERTRAIN_SERVER_ADDR", "127.0.0.1:9100")
	t.Setenv("FINGERTRAIN_CLASSIFIER_THRESHOLD", "20")
	t.Setenv("FINGERTRAIN_LOG_LEVEL", "debug")
	t.Setenv("FINGERTRAIN_PUBLISH_ENDPOINT", "tcp://127.0.0.1:5556")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr)
	assert.Equal(t, 20.0, cfg.Classifier.Threshold)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel())
	assert.Equal(t, "tcp://127.0.0.1:5556", cfg.Publish.Endpoint)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "frame: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"zero threshold", func(c *Config) { c.Classifier.Threshold = 0 }, "classifier.threshold"},
		{"straight angle", func(c *Config) { c.Classifier.Threshold = 180 }, "classifier.threshold"},
		{"negative step", func(c *Config) { c.Scene.Step = -1 }, "scene.step"},
		{"zero hz", func(c *Config) { c.Frame.Hz = 0 }, "frame.hz"},
		{"camera size", func(c *Config) { c.Camera.Width = 0 }, "camera"},
		{"max hands", func(c *Config) { c.Detector.MaxHands = 0 }, "detector.max_hands"},
		{"window size", func(c *Config) { c.Window.Height = -1 }, "window"},
		{"publish topic", func(c *Config) {
			c.Publish.Endpoint = "inproc://x"
			c.Publish.Topic = ""
		}, "publish.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	cfg := Default()
	assert.NoError(t, Validate(&cfg))
}
