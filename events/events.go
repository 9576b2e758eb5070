package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/google/uuid"
)

// Topics carried by the outbox and the bus. Real-time subscribers receive
// the same stream; payloads never include participant contact data.
const (
	TopicMatchScheduled      = "match.scheduled"
	TopicCheckInOpened       = "match.check_in_opened"
	TopicMatchReady          = "match.ready"
	TopicMatchStarted        = "match.started"
	TopicScoreUpdated        = "match.score_updated"
	TopicMatchCompleted      = "match.completed"
	TopicMatchForfeited      = "match.forfeited"
	TopicMatchCanceled       = "match.canceled"
	TopicDisputeRaised       = "match.dispute_raised"
	TopicDisputeResolved     = "match.dispute_resolved"
	TopicBracketUpdated      = "bracket.updated"
	TopicTournamentCompleted = "tournament.completed"
)

// MatchEvent describes a single match transition.
type MatchEvent struct {
	TournamentID int                `json:"tournament_id"`
	MatchID      int                `json:"match_id"`
	NodePos      int                `json:"node_pos"`
	Round        int                `json:"round"`
	Status       models.MatchStatus `json:"status"`
	Score1       *int               `json:"score1,omitempty"`
	Score2       *int               `json:"score2,omitempty"`
	WinnerID     *int               `json:"winner_id,omitempty"`
	LoserID      *int               `json:"loser_id,omitempty"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

// BracketEvent signals a structural or slot change on the bracket.
type BracketEvent struct {
	TournamentID int       `json:"tournament_id"`
	BracketID    int       `json:"bracket_id"`
	NodePos      int       `json:"node_pos,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DisputeEvent signals a dispute being raised or resolved.
type DisputeEvent struct {
	TournamentID int                  `json:"tournament_id"`
	MatchID      int                  `json:"match_id"`
	DisputeID    int                  `json:"dispute_id"`
	Status       models.DisputeStatus `json:"status"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

// TournamentCompletedEvent carries the final placements.
type TournamentCompletedEvent struct {
	TournamentID   int       `json:"tournament_id"`
	WinnerID       int       `json:"winner_id"`
	RunnerUpID     int       `json:"runner_up_id"`
	ThirdPlaceID   *int      `json:"third_place_id,omitempty"`
	RequiresReview bool      `json:"requires_review"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewOutboxEvent wraps a payload into a persistable outbox row with a fresh
// event id. The id survives redelivery, so consumers can deduplicate on it.
func NewOutboxEvent(tournamentID int, topic string, payload interface{}) (*models.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	return &models.OutboxEvent{
		EventID:      uuid.NewString(),
		TournamentID: tournamentID,
		Topic:        topic,
		Payload:      raw,
	}, nil
}
