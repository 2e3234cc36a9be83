// Package detector provides hand landmark detection interfaces and types.
package detector

import (
	"encoding/json"
	"fmt"
	"io"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// NumFingers is the number of fingers per hand, thumb included.
const NumFingers = 5

// Connections lists the landmark pairs drawn as the hand skeleton.
var Connections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}

// Handedness is the detector's left/right label for a hand.
type Handedness string

const (
	Left  Handedness = "Left"
	Right Handedness = "Right"
)

// Mirror swaps Left and Right. Unknown labels are returned unchanged.
func (h Handedness) Mirror() Handedness {
	switch h {
	case Left:
		return Right
	case Right:
		return Left
	}
	return h
}

// Valid reports whether h is Left or Right.
func (h Handedness) Valid() bool {
	return h == Left || h == Right
}

// Point3D is a landmark position in normalized image space.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks is one detected hand: 21 landmarks plus handedness.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness Handedness            `json:"handedness"`
	Score      float64               `json:"score"`
}

// FingerWindow returns the four landmarks of finger f (0 = thumb, 4 = pinky),
// ordered from base to tip. It skips the wrist and walks four points per finger.
func (h *HandLandmarks) FingerWindow(f int) [4]Point3D {
	var w [4]Point3D
	if f < 0 || f >= NumFingers {
		return w
	}
	base := f*4 + 1
	copy(w[:], h.Points[base:base+4])
	return w
}

// jsonHand is the wire shape used by the landmark service and fixture files.
// Points may carry fewer than 21 entries; missing ones stay at the origin.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: Handedness(h.Handedness),
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = h.Points[i]
	}
	return lm
}

// DecodeHands reads {"hands":[...]} from r.
func DecodeHands(r io.Reader) ([]HandLandmarks, error) {
	var payload struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode hands: %w", err)
	}
	return convertHands(payload.Hands), nil
}

func convertHands(in []jsonHand) []HandLandmarks {
	out := make([]HandLandmarks, len(in))
	for i, h := range in {
		out[i] = h.toHandLandmarks()
	}
	return out
}
