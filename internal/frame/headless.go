package frame

import (
	"context"
	"fmt"
	"time"
)

// HeadlessConfig controls the windowless frame pump.
type HeadlessConfig struct {
	// Hz is the frame rate (default 60).
	Hz int
	// Frames stops the pump after this many frames; 0 runs until ctx is done.
	Frames uint64
}

// RunHeadless steps s at the configured rate until ctx is cancelled or the
// frame limit is reached.
func RunHeadless(ctx context.Context, s *Scheduler, cfg HeadlessConfig) error {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}

	d := time.Second / time.Duration(cfg.Hz)
	if d <= 0 {
		return fmt.Errorf("invalid headless hz: %d", cfg.Hz)
	}
	t := time.NewTicker(d)
	defer t.Stop()

	var n uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Step()
			n++
			if cfg.Frames > 0 && n >= cfg.Frames {
				return nil
			}
		}
	}
}
