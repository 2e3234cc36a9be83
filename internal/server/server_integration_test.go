package server

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/detector"
	"github.com/ayusman/fingertrain/internal/overlay"
)

func wsURL(ts *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
}

func TestStateSocket_JSON(t *testing.T) {
	game := newFakeGame()
	ts := httptest.NewServer(New(Config{Game: game}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first control.State
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial state: %v", err)
	}
	if first.Target != 2 {
		t.Errorf("expected target 2 in initial state, got %d", first.Target)
	}

	game.cell.Update(func(s *control.State) { s.Left = 3 })

	for {
		var st control.State
		if err := conn.ReadJSON(&st); err != nil {
			t.Fatalf("read update: %v", err)
		}
		if st.Left == 3 {
			break
		}
	}
}

func TestStateSocket_CBOR(t *testing.T) {
	game := newFakeGame()
	ts := httptest.NewServer(New(Config{Game: game}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "?format=cbor"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Errorf("expected binary message, got %d", mt)
	}
	st, err := control.Decode(data, control.FormatCBOR)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Session != "s-1" {
		t.Errorf("expected session s-1, got %q", st.Session)
	}
}

func TestStateSocket_ReleasesSubscription(t *testing.T) {
	game := newFakeGame()
	srv := New(Config{Game: game})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, ""), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for srv.states.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if srv.states.Clients() != 1 {
		t.Fatalf("expected 1 client, got %d", srv.states.Clients())
	}

	conn.Close()

	for game.cell.Subscribers() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := game.cell.Subscribers(); n != 0 {
		t.Errorf("expected subscription released, %d left", n)
	}
}

func TestStream_ServesOverlayFrames(t *testing.T) {
	game := newFakeGame()
	ov := overlay.New(64, 48)
	defer ov.Close()
	if err := ov.Draw(nil, []detector.HandLandmarks{detector.OpenPalmLandmarks()}); err != nil {
		t.Fatalf("draw: %v", err)
	}
	game.ov = ov

	ts := httptest.NewServer(New(Config{Game: game}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET /api/stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("unexpected content type %q", ct)
	}

	r := bufio.NewReader(resp.Body)
	boundary, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read boundary: %v", err)
	}
	if strings.TrimSpace(boundary) != "--frame" {
		t.Errorf("expected --frame, got %q", boundary)
	}
	partType, _ := r.ReadString('\n')
	if strings.TrimSpace(partType) != "Content-Type: image/jpeg" {
		t.Errorf("unexpected part header %q", partType)
	}
}

func TestStream_WaitsForOverlay(t *testing.T) {
	h := NewStreamHandler(func() (JPEGSource, bool) { return nil, false })

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Body.Len() != 0 {
		t.Errorf("expected no frames before the overlay is ready, got %d bytes", rec.Body.Len())
	}
}
