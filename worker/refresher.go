package worker

import (
	"context"
	"log/slog"
	"time"
)

// Refreshable is anything that can re-fetch its current view.
type Refreshable interface {
	Refresh()
}

// Refresher triggers a refresh of the post list on a fixed interval.
type Refresher struct {
	Target   Refreshable
	Interval time.Duration
}

func (w *Refresher) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			slog.Debug("refresher: refreshing post list")
			w.Target.Refresh()
		}
	}
}
