package tray

import (
	"testing"

	"github.com/ayusman/fingertrain/internal/control"
)

func TestLabels(t *testing.T) {
	if got := DigitsLabel(2, 5); got != "Left 2 · Right 5" {
		t.Errorf("DigitsLabel() = %q", got)
	}
	if got := TargetLabel(3); got != "Target: 3" {
		t.Errorf("TargetLabel() = %q", got)
	}
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles must differ")
	}
}

func TestTray_HandleToggle(t *testing.T) {
	tr := New()
	var got []bool
	tr.OnToggle(func(running bool) { got = append(got, running) })

	tr.handleToggle()
	tr.handleToggle()

	if len(got) != 2 || got[0] || !got[1] {
		t.Errorf("unexpected toggle callbacks %v", got)
	}
	if !tr.Running() {
		t.Error("expected running after two toggles")
	}
}

func TestTray_ShowBeforeMenu(t *testing.T) {
	tr := New()

	// Menu items do not exist until the tray is running; Show must not panic.
	tr.Show(control.State{Left: 1, Right: 2, Webcam: false})

	if tr.Running() {
		t.Error("Show should mirror the webcam state")
	}
}
