package gesture

import "github.com/ayusman/fingertrain/internal/detector"

// DigitCounts holds the latest finger count for each hand side.
// A side keeps its last value when that hand leaves the frame.
type DigitCounts struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Apply overwrites the sides present in counts and reports whether anything changed.
func (d *DigitCounts) Apply(counts map[detector.Handedness]int) bool {
	changed := false
	if n, ok := counts[detector.Left]; ok && n != d.Left {
		d.Left = n
		changed = true
	}
	if n, ok := counts[detector.Right]; ok && n != d.Right {
		d.Right = n
		changed = true
	}
	return changed
}

// Total returns the sum of both hands.
func (d DigitCounts) Total() int {
	return d.Left + d.Right
}
