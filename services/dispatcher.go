package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher runs collaborator calls detached from the transition that
// triggered them. Each task is retried a few times with backoff; a task
// that keeps failing is logged as an operational alert and dropped. The
// call must be idempotent and replayable, so it never corrupts tournament
// state.
type Dispatcher struct {
	logger  *slog.Logger
	wg      sync.WaitGroup
	retries int
	backoff time.Duration
	timeout time.Duration
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		retries: 3,
		backoff: 2 * time.Second,
		timeout: 30 * time.Second,
	}
}

// Go schedules a task. The task gets its own context: dispatched work must
// survive the request that triggered it.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		var err error
		for attempt := 0; attempt <= d.retries; attempt++ {
			if attempt > 0 {
				time.Sleep(d.backoff * time.Duration(attempt))
			}
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			err = fn(ctx)
			cancel()
			if err == nil {
				return
			}
			d.logger.Warn("collaborator call failed",
				slog.String("task", name),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err))
		}
		d.logger.Error("collaborator call exhausted retries, needs operator attention",
			slog.String("task", name),
			slog.Any("error", err))
	}()
}

// Wait blocks until all in-flight tasks finish. Used on shutdown and in
// tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
