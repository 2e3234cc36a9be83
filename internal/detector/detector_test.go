package detector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandedness_Mirror(t *testing.T) {
	tests := []struct {
		in   Handedness
		want Handedness
	}{
		{Left, Right},
		{Right, Left},
		{Handedness("Unknown"), Handedness("Unknown")},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			if got := tt.in.Mirror(); got != tt.want {
				t.Errorf("Mirror() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandLandmarks_FingerWindow(t *testing.T) {
	var hand HandLandmarks
	for i := 0; i < NumLandmarks; i++ {
		hand.Points[i] = Point3D{X: float64(i)}
	}

	t.Run("windows skip the wrist and walk four points per finger", func(t *testing.T) {
		for f := 0; f < NumFingers; f++ {
			w := hand.FingerWindow(f)
			for j := 0; j < 4; j++ {
				want := float64(f*4 + 1 + j)
				if w[j].X != want {
					t.Errorf("finger %d point %d: got landmark %v, want %v", f, j, w[j].X, want)
				}
			}
		}
	})

	t.Run("thumb window ends at thumb tip", func(t *testing.T) {
		w := hand.FingerWindow(0)
		if w[3].X != ThumbTip {
			t.Errorf("expected thumb tip %d, got %v", ThumbTip, w[3].X)
		}
	})

	t.Run("out of range finger is zero", func(t *testing.T) {
		if w := hand.FingerWindow(5); w != ([4]Point3D{}) {
			t.Errorf("expected zero window, got %v", w)
		}
		if w := hand.FingerWindow(-1); w != ([4]Point3D{}) {
			t.Errorf("expected zero window, got %v", w)
		}
	})
}

func TestDecodeHands(t *testing.T) {
	t.Run("decodes handedness, score and points", func(t *testing.T) {
		in := `{"hands":[{"handedness":"Left","score":0.8,"points":[{"x":0.1,"y":0.2,"z":0.3}]}]}`

		hands, err := DecodeHands(strings.NewReader(in))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Handedness != Left {
			t.Errorf("expected Left, got %q", hands[0].Handedness)
		}
		if hands[0].Score != 0.8 {
			t.Errorf("expected score 0.8, got %f", hands[0].Score)
		}
		if hands[0].Points[Wrist] != (Point3D{X: 0.1, Y: 0.2, Z: 0.3}) {
			t.Errorf("unexpected wrist %v", hands[0].Points[Wrist])
		}
		if hands[0].Points[PinkyTip] != (Point3D{}) {
			t.Errorf("missing points should stay at origin, got %v", hands[0].Points[PinkyTip])
		}
	})

	t.Run("empty hands list", func(t *testing.T) {
		hands, err := DecodeHands(strings.NewReader(`{"hands":[]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %d", len(hands))
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := DecodeHands(strings.NewReader(`{`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("rejects detection before video mode", func(t *testing.T) {
		mock := NewMockDetector()

		_, err := mock.Detect(nil, 1)

		if !errors.Is(err, ErrNotVideoMode) {
			t.Errorf("expected ErrNotVideoMode, got %v", err)
		}
		if mock.Calls() != 0 {
			t.Errorf("expected no recorded calls, got %d", mock.Calls())
		}
	})

	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetRunningMode(ModeVideo)

		hands, err := mock.Detect(nil, 1)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands and records timestamps", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetRunningMode(ModeVideo)
		mock.SetHands([]HandLandmarks{ThumbsUpLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil, 10)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}

		mock.Detect(nil, 20)
		ts := mock.Timestamps()
		if len(ts) != 2 || ts[0] != 10 || ts[1] != 20 {
			t.Errorf("unexpected timestamps %v", ts)
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetRunningMode(ModeVideo)

		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil, 1)

		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector()

		if err := mock.Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
		if !mock.Closed() {
			t.Error("expected mock to be closed")
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestCountLandmarks(t *testing.T) {
	hand := CountLandmarks(3, Left)

	if hand.Handedness != Left {
		t.Errorf("expected Left, got %q", hand.Handedness)
	}

	// Straight fingers keep a constant X along the window.
	for f := 0; f < 3; f++ {
		w := hand.FingerWindow(f)
		if w[0].X != w[3].X || w[3].Y >= w[0].Y {
			t.Errorf("finger %d should point straight up, got %v", f, w)
		}
	}

	// Folded fingers turn back down after the second joint.
	for f := 3; f < NumFingers; f++ {
		w := hand.FingerWindow(f)
		if w[3].Y <= w[2].Y {
			t.Errorf("finger %d should fold back, got %v", f, w)
		}
	}
}

func TestMediaPipeDetector_RunningMode(t *testing.T) {
	tmpDir := t.TempDir()
	script := filepath.Join(tmpDir, "mediapipe_service.py")
	model := filepath.Join(tmpDir, "hand_landmarker.task")
	for _, p := range []string{script, model} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	d, err := NewMediaPipeDetector(context.Background(), Config{
		ScriptPath: script,
		ModelURL:   model,
		MaxHands:   2,
	})
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	defer d.Close()

	t.Run("detect before video mode fails", func(t *testing.T) {
		if _, err := d.Detect(nil, 1); !errors.Is(err, ErrNotVideoMode) {
			t.Errorf("expected ErrNotVideoMode, got %v", err)
		}
	})

	t.Run("unknown mode is rejected", func(t *testing.T) {
		if err := d.SetRunningMode(RunningMode("LIVE_STREAM")); err == nil {
			t.Error("expected error for unknown mode")
		}
	})

	t.Run("video mode rejects empty frame without starting the service", func(t *testing.T) {
		if err := d.SetRunningMode(ModeVideo); err != nil {
			t.Fatalf("SetRunningMode() error = %v", err)
		}
		if _, err := d.Detect(nil, 1); err == nil {
			t.Error("expected error for nil frame")
		}
	})
}

func TestNewMediaPipeDetector_MissingModel(t *testing.T) {
	tmpDir := t.TempDir()
	script := filepath.Join(tmpDir, "mediapipe_service.py")
	if err := os.WriteFile(script, []byte("x"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	_, err := NewMediaPipeDetector(context.Background(), Config{
		ScriptPath: script,
		ModelURL:   filepath.Join(tmpDir, "missing.task"),
	})
	if err == nil {
		t.Error("expected error for missing model")
	}
}
