// Package tray provides a system tray menu for toggling the webcam loop and
// showing the current finger counts.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/fingertrain/internal/control"
)

// Tray is the system tray application.
type Tray struct {
	onToggle func(running bool)
	onQuit   func()
	running  bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuDigits *systray.MenuItem
	menuTarget *systray.MenuItem
}

// New creates a Tray with the webcam marked running.
func New() *Tray {
	return &Tray{running: true}
}

// OnToggle sets the callback called when the webcam toggle is clicked.
func (t *Tray) OnToggle(fn func(running bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnQuit sets the callback called when Quit is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray. It blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("fingertrain")
	systray.SetTooltip("fingertrain webcam control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.running), "Toggle the webcam")
	systray.AddSeparator()
	t.menuDigits = systray.AddMenuItem(DigitsLabel(0, 0), "Fingers shown per hand")
	t.menuDigits.Disable()
	t.menuTarget = systray.AddMenuItem(TargetLabel(0), "Target digit")
	t.menuTarget.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit fingertrain")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.running = !t.running
	running := t.running
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(running))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(running)
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Show updates the menu from a control state.
func (t *Tray) Show(s control.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.Webcam != t.running {
		t.running = s.Webcam
		if t.menuToggle != nil {
			t.menuToggle.SetTitle(toggleTitle(t.running))
		}
	}
	if t.menuDigits != nil {
		t.menuDigits.SetTitle(DigitsLabel(s.Left, s.Right))
	}
	if t.menuTarget != nil {
		t.menuTarget.SetTitle(TargetLabel(s.Target))
	}
}

// Running returns the webcam state shown in the menu.
func (t *Tray) Running() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// DigitsLabel formats the finger counts for the menu.
func DigitsLabel(left, right int) string {
	return fmt.Sprintf("Left %d · Right %d", left, right)
}

// TargetLabel formats the target digit for the menu.
func TargetLabel(target int) string {
	return fmt.Sprintf("Target: %d", target)
}

func toggleTitle(running bool) string {
	if running {
		return "● Webcam on"
	}
	return "○ Webcam off"
}
