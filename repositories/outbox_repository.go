package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/lib/pq"
)

type OutboxRepository interface {
	// Append persists an event in the same transaction as the state change
	// that produced it.
	Append(ctx context.Context, exec SQLExecutor, ev *models.OutboxEvent) error
	ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int, at time.Time) error
}

type postgresOutboxRepository struct {
	db *sql.DB
}

func NewPostgresOutboxRepository(db *sql.DB) OutboxRepository {
	return &postgresOutboxRepository{db: db}
}

func (r *postgresOutboxRepository) Append(ctx context.Context, exec SQLExecutor, ev *models.OutboxEvent) error {
	query := `
		INSERT INTO outbox_events (event_id, tournament_id, topic, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, ev.EventID, ev.TournamentID, ev.Topic, []byte(ev.Payload)).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append outbox event %s: %w", ev.Topic, err)
	}
	return nil
}

func (r *postgresOutboxRepository) ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	query := `
		SELECT id, event_id, tournament_id, topic, payload, published_at, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unpublished outbox events: %w", err)
	}
	defer rows.Close()

	var out []models.OutboxEvent
	for rows.Next() {
		var ev models.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.TournamentID, &ev.Topic, &payload, &ev.PublishedAt, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event row: %w", err)
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *postgresOutboxRepository) MarkPublished(ctx context.Context, ids []int, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2)`
	if _, err := r.db.ExecContext(ctx, query, at, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark outbox events published: %w", err)
	}
	return nil
}
