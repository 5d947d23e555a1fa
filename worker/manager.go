package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Worker is a long-running loop that returns once ctx is done.
type Worker interface {
	Start(ctx context.Context) error
}

// Manager runs the background loops of a session (orchestrator, refresher,
// metrics endpoint) until the session context ends.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start blocks until ctx is done and every worker has returned. A worker
// that fails early is logged as it happens; the others keep running.
// The result joins every worker error.
func (m *Manager) Start(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, w := range m.workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			err := w.Start(ctx)
			if err == nil {
				return
			}
			name := fmt.Sprintf("%T", w)
			slog.Error("manager: worker failed", "worker", name, "error", err)
			mu.Lock()
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			mu.Unlock()
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
	return errors.Join(errs...)
}
