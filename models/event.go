package models

import (
	"encoding/json"
	"time"
)

// OutboxEvent is a domain event persisted in the same transaction as the
// state change that produced it. A relay publishes unsent rows to the event
// bus with at-least-once delivery; consumers must be idempotent.
type OutboxEvent struct {
	ID           int             `json:"id" db:"id"`
	EventID      string          `json:"event_id" db:"event_id"` // uuid, stable across redelivery
	TournamentID int             `json:"tournament_id" db:"tournament_id"`
	Topic        string          `json:"topic" db:"topic"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	PublishedAt  *time.Time      `json:"published_at,omitempty" db:"published_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
