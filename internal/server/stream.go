package server

import (
	"fmt"
	"net/http"
	"time"
)

// JPEGSource yields the latest encoded overlay and its sequence number.
type JPEGSource interface {
	JPEG() ([]byte, uint64)
}

// StreamHandler serves the overlay as MJPEG. A part is written only when the
// overlay has been redrawn.
type StreamHandler struct {
	source   func() (JPEGSource, bool)
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler polling source at about 15 FPS.
func NewStreamHandler(source func() (JPEGSource, bool)) *StreamHandler {
	return &StreamHandler{source: source, interval: 66 * time.Millisecond}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last uint64
	for {
		if src, ok := h.source(); ok {
			if data, seq := src.JPEG(); seq != 0 && seq != last {
				last = seq
				fmt.Fprintf(w, "--frame\r\n")
				fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
				fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
				if _, err := w.Write(data); err != nil {
					return
				}
				fmt.Fprintf(w, "\r\n")

				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
