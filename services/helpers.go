package services

import (
	"context"
	"time"

	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

func appendEvent(ctx context.Context, exec repositories.SQLExecutor, outbox repositories.OutboxRepository, tournamentID int, topic string, payload interface{}) error {
	ev, err := events.NewOutboxEvent(tournamentID, topic, payload)
	if err != nil {
		return err
	}
	return outbox.Append(ctx, exec, ev)
}

func matchEvent(m *models.Match) events.MatchEvent {
	return events.MatchEvent{
		TournamentID: m.TournamentID,
		MatchID:      m.ID,
		NodePos:      m.NodePos,
		Round:        m.Round,
		Status:       m.Status,
		Score1:       m.Score1,
		Score2:       m.Score2,
		WinnerID:     m.WinnerParticipantID,
		LoserID:      m.LoserParticipantID,
		OccurredAt:   time.Now(),
	}
}

func intPtr(v int) *int { return &v }

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
