// Package server provides the HTTP surface of a fingertrain session: health,
// control state, the webcam toggle, the overlay stream and a live state socket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/fingertrain/internal/control"
	"github.com/ayusman/fingertrain/internal/logging"
	"github.com/ayusman/fingertrain/internal/overlay"
)

// Game is the session the server exposes.
type Game interface {
	ID() string
	Cell() *control.Cell
	SetWebcamRunning(running bool) error
	Overlay() (*overlay.Overlay, bool)
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Game      Game
	Logger    *logging.Logger
}

// Server is the HTTP handler for a session.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	log    *logging.Logger
	states *StateHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		log:    config.Logger.With("component", "server"),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Game != nil {
		s.mux.HandleFunc("/api/state", s.handleState)
		s.mux.HandleFunc("/api/webcam", s.handleWebcam)
		s.mux.Handle("/api/stream", NewStreamHandler(s.overlayFrames))

		s.states = NewStateHandler(s.config.Game.Cell(), s.log)
		s.mux.Handle("/ws", s.states)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

func (s *Server) overlayFrames() (JPEGSource, bool) {
	ov, ok := s.config.Game.Overlay()
	if !ok || ov == nil {
		return nil, false
	}
	return ov, true
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Game != nil {
		response["session"] = s.config.Game.ID()
		if s.states != nil {
			response["ws_clients"] = s.states.Clients()
		}
	}

	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format, err := control.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	payload, err := control.Encode(s.config.Game.Cell().Load(), format)
	if err != nil {
		http.Error(w, "Failed to encode state", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	w.Write(payload)
}

type webcamRequest struct {
	Running *bool `json:"running"`
}

func (s *Server) handleWebcam(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req webcamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Running == nil {
		http.Error(w, `expected {"running": bool}`, http.StatusBadRequest)
		return
	}

	if err := s.config.Game.SetWebcamRunning(*req.Running); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, http.StatusOK, s.config.Game.Cell().Load())
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("http server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func contentType(f control.Format) string {
	if f == control.FormatCBOR {
		return "application/cbor"
	}
	return "application/json"
}
