// Package gesture turns hand landmarks into per-hand finger counts.
package gesture

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/fingertrain/internal/detector"
)

// DefaultAngleThreshold is the bend angle, in degrees, below which a finger
// counts as extended.
const DefaultAngleThreshold = 25.0

// minNorm treats shorter vectors as degenerate.
const minNorm = 1e-12

// FingerAngle returns the angle in degrees between the base segment and the
// tip segment of finger f (0 = thumb). The segments are p0-p1 and p2-p3 of
// the finger's four-landmark window, projected onto the image plane.
//
// ok is false when either segment has zero length; the angle is then undefined.
func FingerAngle(hand *detector.HandLandmarks, f int) (angle float64, ok bool) {
	w := hand.FingerWindow(f)

	v1 := r2.Sub(xy(w[0]), xy(w[1]))
	v2 := r2.Sub(xy(w[2]), xy(w[3]))

	n1 := r2.Norm(v1)
	n2 := r2.Norm(v2)
	if n1 < minNorm || n2 < minNorm {
		return 0, false
	}

	cos := r2.Dot(v1, v2) / (n1 * n2)
	// Rounding can push |cos| slightly past 1.
	cos = math.Max(-1, math.Min(1, cos))

	return math.Abs(math.Acos(cos) * 180 / math.Pi), true
}

// ExtendedFingers counts the fingers of hand whose angle is strictly below
// thresholdDeg. Degenerate fingers are never counted.
func ExtendedFingers(hand *detector.HandLandmarks, thresholdDeg float64) int {
	count := 0
	for f := 0; f < detector.NumFingers; f++ {
		angle, ok := FingerAngle(hand, f)
		if ok && angle < thresholdDeg {
			count++
		}
	}
	return count
}

// Classify returns the finger count for every observed hand, keyed by the
// user's own hand side. The detector labels hands as seen in the unmirrored
// camera image, so each label is swapped before use. When two observations
// map to the same side the later one wins.
func Classify(hands []detector.HandLandmarks, thresholdDeg float64) map[detector.Handedness]int {
	counts := make(map[detector.Handedness]int, len(hands))
	for i := range hands {
		side := hands[i].Handedness.Mirror()
		if !side.Valid() {
			continue
		}
		counts[side] = ExtendedFingers(&hands[i], thresholdDeg)
	}
	return counts
}

func xy(p detector.Point3D) r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}
