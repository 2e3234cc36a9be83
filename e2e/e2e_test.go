package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/fingertrain/internal/capture"
	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/frame"
	"github.com/ayusman/fingertrain/internal/game"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/scene"
	"github.com/ayusman/fingertrain/internal/server"
	"github.com/ayusman/fingertrain/testdata"
)

// pump steps frames, advancing the video clock each frame, until cond holds.
func pump(t *testing.T, sched *frame.Scheduler, video *capture.MockVideo, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		video.Advance(16)
		sched.Step()
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached while pumping frames")
}

func getState(t *testing.T, client *http.Client, url string) control.State {
	t.Helper()
	resp, err := client.Get(url + "/api/state")
	if err != nil {
		t.Fatalf("GET /api/state error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var st control.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	hands, err := testdata.LoadHands("two_hands.json")
	if err != nil {
		t.Fatalf("LoadHands() error = %v", err)
	}

	video := capture.NewMockVideo(64, 48)
	det := detector.NewMockDetector()
	det.SetHands(hands)

	sched := frame.NewScheduler()
	session := game.NewSession(sched, game.DefaultConfig(), game.Deps{
		OpenVideo:   func(context.Context) (capture.Video, error) { return video, nil },
		NewDetector: func(context.Context) (detector.Detector, error) { return det, nil },
		LoadAssets: func(context.Context) (*scene.Assets, error) {
			return &scene.Assets{Object: &scene.Object{Name: "train"}}, nil
		},
		Renderer:    scene.NewSnapshotRenderer(640, 480),
		RandomDigit: func() int { return 5 },
		Logger:      logging.Discard(),
	})
	if err := session.Mount(context.Background()); err != nil {
		t.Fatalf("Mount() error = %v", err)
	}

	ts := httptest.NewServer(server.New(server.Config{Game: session, Logger: logging.Discard()}))
	defer ts.Close()
	client := ts.Client()

	t.Run("CountsFingers", func(t *testing.T) {
		pump(t, sched, video, func() bool {
			st := session.State()
			return st.Left == 3 && st.Right == 2
		})

		st := getState(t, client, ts.URL)
		if st.Left != 3 || st.Right != 2 {
			t.Errorf("counts = %d/%d, want 3/2", st.Left, st.Right)
		}
		if st.Target != 5 {
			t.Errorf("target = %d, want 5", st.Target)
		}
		if !st.ObjectLoaded || st.ObjectZ >= 0 {
			t.Errorf("expected the train to be moving, got loaded=%v z=%v", st.ObjectLoaded, st.ObjectZ)
		}
		if st.Session != session.ID() {
			t.Errorf("session = %q, want %q", st.Session, session.ID())
		}
	})

	t.Run("StateAsCBOR", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/state?format=cbor")
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		st, err := control.Decode(data, control.FormatCBOR)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if st.Left != 3 {
			t.Errorf("left = %d, want 3", st.Left)
		}
	})

	t.Run("PauseWebcam", func(t *testing.T) {
		resp, err := client.Post(ts.URL+"/api/webcam", "application/json", strings.NewReader(`{"running": false}`))
		if err != nil {
			t.Fatalf("POST /api/webcam error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		// The pending tick sees the closed gate and does not reschedule.
		video.Advance(16)
		sched.Step()
		calls := det.Calls()
		det.SetHands(nil)
		for i := 0; i < 10; i++ {
			video.Advance(16)
			sched.Step()
		}
		if det.Calls() != calls {
			t.Errorf("detector called %d times after pause", det.Calls()-calls)
		}

		st := getState(t, client, ts.URL)
		if st.Webcam {
			t.Error("expected webcam off")
		}
		if st.Left != 3 || st.Right != 2 {
			t.Errorf("counts should persist while paused, got %d/%d", st.Left, st.Right)
		}
	})

	t.Run("Unmount", func(t *testing.T) {
		if err := session.Unmount(); err != nil {
			t.Fatalf("Unmount() error = %v", err)
		}
		if !video.Closed() || !det.Closed() {
			t.Error("expected collaborators closed")
		}

		resp, err := client.Post(ts.URL+"/api/webcam", "application/json", strings.NewReader(`{"running": true}`))
		if err != nil {
			t.Fatalf("POST error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusConflict)
		}
	})
}
