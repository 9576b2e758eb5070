package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// ResultResolver is implemented by the result service. The advancement
// engine pokes it whenever one of the deciding nodes settles.
type ResultResolver interface {
	ResolveTournament(ctx context.Context, tournamentID int) error
}

// AdvancementService propagates a settled match up the bracket tree: record
// the node winner, fill the parent slot, feed the bronze node from the
// semifinals, and spawn the next match once both feeders have delivered.
// Every write is conditional, so replaying a delivery (the bus is
// at-least-once) changes nothing.
type AdvancementService interface {
	Run(ctx context.Context, bus *events.Bus) error
	HandleMatchCompletion(ctx context.Context, ev events.MatchEvent) error
}

type advancementService struct {
	tx              repositories.TxManager
	bracketRepo     repositories.BracketRepository
	nodeRepo        repositories.NodeRepository
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	profileRepo     repositories.GameProfileRepository
	outbox          repositories.OutboxRepository
	resolver        ResultResolver
	logger          *slog.Logger
}

func NewAdvancementService(
	tx repositories.TxManager,
	bracketRepo repositories.BracketRepository,
	nodeRepo repositories.NodeRepository,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	profileRepo repositories.GameProfileRepository,
	outbox repositories.OutboxRepository,
	resolver ResultResolver,
	logger *slog.Logger,
) AdvancementService {
	return &advancementService{
		tx:              tx,
		bracketRepo:     bracketRepo,
		nodeRepo:        nodeRepo,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		profileRepo:     profileRepo,
		outbox:          outbox,
		resolver:        resolver,
		logger:          logger,
	}
}

func (s *advancementService) Run(ctx context.Context, bus *events.Bus) error {
	for _, topic := range []string{events.TopicMatchCompleted, events.TopicMatchForfeited} {
		messages, err := bus.Subscribe(ctx, topic)
		if err != nil {
			return err
		}
		go func() {
			for msg := range messages {
				var ev events.MatchEvent
				if err := json.Unmarshal(msg.Payload, &ev); err != nil {
					s.logger.Error("undecodable match event, dropping",
						slog.String("event_id", msg.UUID),
						slog.Any("error", err))
					msg.Ack()
					continue
				}
				if err := s.HandleMatchCompletion(ctx, ev); err != nil {
					s.logger.Error("advancement failed, will redeliver",
						slog.Int("match_id", ev.MatchID),
						slog.Any("error", err))
					msg.Nack()
					continue
				}
				msg.Ack()
			}
		}()
	}
	return nil
}

func (s *advancementService) HandleMatchCompletion(ctx context.Context, ev events.MatchEvent) error {
	// Formats without tree wiring (round robin) carry no node position;
	// their standings are computed at resolve time.
	if ev.NodePos == 0 {
		return nil
	}

	bracket, err := s.bracketRepo.GetByTournament(ctx, ev.TournamentID)
	if err != nil {
		return err
	}
	node, err := s.nodeRepo.GetByPosition(ctx, bracket.ID, ev.NodePos)
	if err != nil {
		return err
	}

	m, err := s.matchRepo.GetByID(ctx, ev.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil
		}
		return err
	}
	if !m.Status.Terminal() {
		// Stale delivery racing a newer read; the terminal event will
		// arrive on its own.
		return nil
	}

	// A cancellation or double forfeit settles nothing upstream: the
	// branch simply goes quiet until an operator forfeits with a winner.
	if m.WinnerParticipantID == nil {
		s.logger.InfoContext(ctx, "match ended without a winner, branch stays open",
			slog.Int("match_id", m.ID),
			slog.Int("node_pos", node.Position))
		return nil
	}
	winnerID := *m.WinnerParticipantID

	winnerName, err := s.displayName(ctx, winnerID)
	if err != nil {
		return err
	}

	var parent, bronze *models.BracketNode
	if node.ParentPos > 0 {
		parent, err = s.nodeRepo.GetByPosition(ctx, bracket.ID, node.ParentPos)
		if err != nil {
			return err
		}
	}

	// Semifinal losers feed the bronze node, each into the slot matching
	// their semifinal's order.
	feedBronze := !node.IsBronze && node.Round == bracket.TotalRounds-1 && m.LoserParticipantID != nil
	if feedBronze {
		bronze, err = s.nodeRepo.GetByPosition(ctx, bracket.ID, bracket.Size)
		if err != nil {
			if errors.Is(err, repositories.ErrNodeNotFound) {
				bronze = nil
			} else {
				return err
			}
		}
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.nodeRepo.SetWinner(ctx, exec, node.ID, winnerID); err != nil {
			return err
		}
		if parent != nil {
			if err := s.nodeRepo.FillSlot(ctx, exec, parent.ID, node.ParentSlot, winnerID, winnerName); err != nil {
				return err
			}
		}
		if bronze != nil {
			loserName, err := s.displayName(ctx, *m.LoserParticipantID)
			if err != nil {
				return err
			}
			if err := s.nodeRepo.FillSlot(ctx, exec, bronze.ID, node.OrderInRound, *m.LoserParticipantID, loserName); err != nil {
				return err
			}
		}
		return appendEvent(ctx, exec, s.outbox, ev.TournamentID, events.TopicBracketUpdated, events.BracketEvent{
			TournamentID: ev.TournamentID,
			BracketID:    bracket.ID,
			NodePos:      node.Position,
			OccurredAt:   time.Now(),
		})
	})
	if err != nil {
		return err
	}

	if parent != nil {
		if err := s.spawnIfReady(ctx, bracket, parent.Position); err != nil {
			return err
		}
	}
	if bronze != nil {
		if err := s.spawnIfReady(ctx, bracket, bronze.Position); err != nil {
			return err
		}
	}

	if node.IsRoot() || node.IsBronze {
		if err := s.resolver.ResolveTournament(ctx, ev.TournamentID); err != nil {
			if errors.Is(err, ErrResultNotReady) {
				return nil
			}
			return err
		}
	}
	return nil
}

// spawnIfReady creates the node's match once both slots are filled. The
// insert is conditional on (tournament, node), so a replay finds the match
// already there and does nothing.
func (s *advancementService) spawnIfReady(ctx context.Context, bracket *models.Bracket, position int) error {
	node, err := s.nodeRepo.GetByPosition(ctx, bracket.ID, position)
	if err != nil {
		return err
	}
	if !node.BothSlotsFilled() || node.MatchID != nil {
		return nil
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, bracket.TournamentID)
	if err != nil {
		return err
	}
	profile, err := s.profileRepo.GetByID(ctx, tournament.GameProfileID)
	if err != nil {
		return err
	}

	// Check-in opens now and the match is scheduled one full window out, so
	// both sides get the profile's window before a no-show forfeits them.
	now := time.Now()
	m := &models.Match{
		TournamentID:    bracket.TournamentID,
		NodePos:         node.Position,
		Round:           node.Round,
		P1ParticipantID: node.Slot1ParticipantID,
		P2ParticipantID: node.Slot2ParticipantID,
		Status:          models.MatchScheduled,
		ScheduledAt:     now.Add(profile.CheckInWindow),
	}
	if profile.CheckInWindow > 0 {
		m.CheckInOpensAt = &now
	}

	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		created, err := s.matchRepo.CreateForNode(ctx, exec, m)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}
		if err := s.nodeRepo.LinkMatch(ctx, exec, node.ID, m.ID); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "next match spawned",
			slog.Int("node_pos", node.Position),
			slog.Int("round", node.Round),
			slog.Int("match_id", m.ID))
		return appendEvent(ctx, exec, s.outbox, bracket.TournamentID, events.TopicMatchScheduled, matchEvent(m))
	})
}

func (s *advancementService) displayName(ctx context.Context, participantID int) (string, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return "", err
	}
	return p.DisplayName, nil
}
