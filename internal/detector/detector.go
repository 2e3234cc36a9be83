package detector

import (
	"errors"

	"gocv.io/x/gocv"
)

// RunningMode selects how the detector treats successive inputs.
type RunningMode string

const (
	// ModeImage treats every input as an unrelated still image.
	ModeImage RunningMode = "IMAGE"
	// ModeVideo tracks hands across frames; inputs need increasing timestamps.
	ModeVideo RunningMode = "VIDEO"
)

var (
	// ErrNotVideoMode is returned by Detect before SetRunningMode(ModeVideo).
	ErrNotVideoMode = errors.New("detector is not in video mode")
	// ErrTimestampNotIncreasing is returned when a video-mode timestamp does not advance.
	ErrTimestampNotIncreasing = errors.New("video timestamp must increase")
)

// Detector defines the interface for hand landmark detection implementations.
type Detector interface {
	// SetRunningMode switches between image and video mode. Per-frame
	// detection is only valid in video mode.
	SetRunningMode(mode RunningMode) error

	// Detect analyzes a video frame captured at timestampMs and returns the
	// detected hands. Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat, timestampMs int64) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// DefaultModelURL is the published MediaPipe hand landmarker model.
const DefaultModelURL = "https://storage.googleapis.com/mediapipe-models/hand_landmarker/hand_landmarker/float16/1/hand_landmarker.task"

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `yaml:"max_hands" env:"MAX_HANDS"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence" env:"MIN_CONFIDENCE"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence" env:"MIN_TRACKING_CONFIDENCE"`

	// ModelURL is fetched once into ModelCacheDir. Local paths are used as-is.
	ModelURL string `yaml:"model_url" env:"MODEL_URL"`

	// ModelCacheDir holds downloaded model weights.
	ModelCacheDir string `yaml:"model_cache_dir" env:"MODEL_CACHE_DIR"`

	// ScriptPath overrides discovery of mediapipe_service.py.
	ScriptPath string `yaml:"script_path" env:"SCRIPT_PATH"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		ModelURL:        DefaultModelURL,
	}
}
