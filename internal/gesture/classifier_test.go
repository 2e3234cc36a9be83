package gesture

import (
	"math"
	"testing"

	"github.com/ayusman/fingertrain/internal/detector"
)

const epsilon = 1e-9

// bentFinger returns a hand whose index finger bends by deg degrees and whose
// other fingers are degenerate (all landmarks at the origin).
func bentFinger(deg float64) detector.HandLandmarks {
	var hand detector.HandLandmarks
	hand.Handedness = detector.Right
	rad := deg * math.Pi / 180
	base := 1*4 + 1
	hand.Points[base] = detector.Point3D{X: 0, Y: 1}
	hand.Points[base+1] = detector.Point3D{X: 0, Y: 0}
	hand.Points[base+2] = detector.Point3D{X: math.Sin(rad), Y: math.Cos(rad)}
	hand.Points[base+3] = detector.Point3D{X: 0, Y: 0}
	return hand
}

func TestFingerAngle(t *testing.T) {
	tests := []struct {
		name string
		deg  float64
	}{
		{"straight", 0},
		{"slight bend", 10},
		{"right angle", 90},
		{"folded back", 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hand := bentFinger(tt.deg)

			angle, ok := FingerAngle(&hand, 1)
			if !ok {
				t.Fatal("expected a defined angle")
			}
			if math.Abs(angle-tt.deg) > 1e-6 {
				t.Errorf("angle = %f, want %f", angle, tt.deg)
			}
		})
	}
}

func TestFingerAngle_Range(t *testing.T) {
	hands := []detector.HandLandmarks{
		detector.ThumbsUpLandmarks(),
		detector.OpenPalmLandmarks(),
		detector.CountLandmarks(2, detector.Left),
	}

	for _, hand := range hands {
		for f := 0; f < detector.NumFingers; f++ {
			angle, ok := FingerAngle(&hand, f)
			if !ok {
				continue
			}
			if math.IsNaN(angle) || angle < 0 || angle > 180 {
				t.Errorf("finger %d angle %f outside [0,180]", f, angle)
			}
		}
	}
}

func TestFingerAngle_IgnoresDepth(t *testing.T) {
	hand := bentFinger(0)
	hand.Points[1*4+1+2].Z = 5

	angle, ok := FingerAngle(&hand, 1)
	if !ok || math.Abs(angle) > 1e-6 {
		t.Errorf("expected 0 degrees ignoring z, got %f (ok=%v)", angle, ok)
	}
}

func TestFingerAngle_Degenerate(t *testing.T) {
	t.Run("p0 equals p1", func(t *testing.T) {
		hand := bentFinger(0)
		base := 1*4 + 1
		hand.Points[base] = hand.Points[base+1]

		angle, ok := FingerAngle(&hand, 1)
		if ok {
			t.Errorf("expected undefined angle, got %f", angle)
		}
		if math.IsNaN(angle) {
			t.Error("angle must not be NaN")
		}
		if n := ExtendedFingers(&hand, DefaultAngleThreshold); n != 0 {
			t.Errorf("degenerate finger counted, got %d", n)
		}
	})

	t.Run("all landmarks at origin", func(t *testing.T) {
		var hand detector.HandLandmarks
		if n := ExtendedFingers(&hand, DefaultAngleThreshold); n != 0 {
			t.Errorf("expected 0 fingers, got %d", n)
		}
	})
}

func TestExtendedFingers_ThresholdIsStrict(t *testing.T) {
	hand := bentFinger(25)
	angle, ok := FingerAngle(&hand, 1)
	if !ok {
		t.Fatal("expected a defined angle")
	}

	if n := ExtendedFingers(&hand, angle); n != 0 {
		t.Errorf("angle equal to threshold must not count, got %d", n)
	}
	if n := ExtendedFingers(&hand, angle+epsilon); n != 1 {
		t.Errorf("angle just below threshold must count, got %d", n)
	}
}

func TestExtendedFingers_Fixtures(t *testing.T) {
	tests := []struct {
		name string
		hand detector.HandLandmarks
		want int
	}{
		{"thumbs up", detector.ThumbsUpLandmarks(), 1},
		{"open palm", detector.OpenPalmLandmarks(), 5},
		{"fist", detector.CountLandmarks(0, detector.Right), 0},
		{"three", detector.CountLandmarks(3, detector.Right), 3},
		{"five", detector.CountLandmarks(5, detector.Right), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtendedFingers(&tt.hand, DefaultAngleThreshold); got != tt.want {
				t.Errorf("ExtendedFingers() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestClassify_MirrorsHandedness(t *testing.T) {
	hands := []detector.HandLandmarks{
		detector.CountLandmarks(2, detector.Left),
		detector.CountLandmarks(4, detector.Right),
	}

	counts := Classify(hands, DefaultAngleThreshold)

	if counts[detector.Right] != 2 {
		t.Errorf("detector Left should publish under Right, got %d", counts[detector.Right])
	}
	if counts[detector.Left] != 4 {
		t.Errorf("detector Right should publish under Left, got %d", counts[detector.Left])
	}
}

func TestClassify_LastObservationWins(t *testing.T) {
	hands := []detector.HandLandmarks{
		detector.CountLandmarks(1, detector.Left),
		detector.CountLandmarks(3, detector.Left),
	}

	counts := Classify(hands, DefaultAngleThreshold)

	if len(counts) != 1 {
		t.Fatalf("expected one side, got %v", counts)
	}
	if counts[detector.Right] != 3 {
		t.Errorf("expected last observation (3) to win, got %d", counts[detector.Right])
	}
}

func TestClassify_SkipsUnknownHandedness(t *testing.T) {
	hand := detector.CountLandmarks(5, detector.Handedness(""))

	counts := Classify([]detector.HandLandmarks{hand}, DefaultAngleThreshold)

	if len(counts) != 0 {
		t.Errorf("expected no counts for unlabeled hand, got %v", counts)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	hands := []detector.HandLandmarks{detector.OpenPalmLandmarks(), detector.CountLandmarks(2, detector.Left)}

	a := Classify(hands, DefaultAngleThreshold)
	b := Classify(hands, DefaultAngleThreshold)

	if len(a) != len(b) || a[detector.Left] != b[detector.Left] || a[detector.Right] != b[detector.Right] {
		t.Errorf("classification not idempotent: %v vs %v", a, b)
	}
}

func TestDigitCounts_Apply(t *testing.T) {
	var d DigitCounts

	if !d.Apply(map[detector.Handedness]int{detector.Left: 3, detector.Right: 1}) {
		t.Error("expected change on first apply")
	}
	if d.Left != 3 || d.Right != 1 {
		t.Errorf("unexpected counts %+v", d)
	}

	// Right hand leaves the frame: its count is kept.
	if !d.Apply(map[detector.Handedness]int{detector.Left: 5}) {
		t.Error("expected change when left count moves")
	}
	if d.Left != 5 || d.Right != 1 {
		t.Errorf("stale count should persist, got %+v", d)
	}

	if d.Apply(map[detector.Handedness]int{}) {
		t.Error("empty observation must not change counts")
	}
	if d.Total() != 6 {
		t.Errorf("Total() = %d, want 6", d.Total())
	}
}
