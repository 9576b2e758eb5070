package events

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/bracket-engine/repositories"
)

// Relay moves persisted outbox rows onto the bus. Publishing happens after
// the owning transaction committed, so a crash between publish and
// mark-published only causes redelivery, never loss.
type Relay struct {
	outbox   repositories.OutboxRepository
	bus      *Bus
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewRelay(outbox repositories.OutboxRepository, bus *Bus, logger *slog.Logger, interval time.Duration) *Relay {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	return &Relay{
		outbox:   outbox,
		bus:      bus,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
}

// Run polls until the context is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "outbox relay pass failed", slog.Any("error", err))
			}
		}
	}
}

// Drain publishes one batch of unpublished events. Exported so tests and
// callers that need synchronous delivery can pump the outbox directly.
func (r *Relay) Drain(ctx context.Context) error {
	pending, err := r.outbox.ListUnpublished(ctx, r.batch)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	published := make([]int, 0, len(pending))
	for _, ev := range pending {
		err := r.bus.Publish(ev.Topic, ev.EventID, strconv.Itoa(ev.TournamentID), ev.Payload)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to publish outbox event",
				slog.String("event_id", ev.EventID),
				slog.String("topic", ev.Topic),
				slog.Any("error", err))
			break
		}
		published = append(published, ev.ID)
	}

	return r.outbox.MarkPublished(ctx, published, time.Now())
}
