package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

type MatchService interface {
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListMatches(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]models.Match, error)

	// CheckIn marks one side as present. When both sides have checked in
	// the match moves to ready.
	CheckIn(ctx context.Context, matchID, participantID int) (*models.Match, error)
	// Start moves a ready match (or a scheduled one, when the game profile
	// has no check-in window) to live and attaches the lobby details.
	Start(ctx context.Context, matchID int, lobby map[string]string) (*models.Match, error)

	// SubmitResult records one side's claimed score, oriented from the
	// submitter's point of view. The first submission parks the match in
	// pending_result; a matching counter-submission completes it, a
	// conflicting one opens a dispute. Resubmitting the same final score
	// on a completed match is a no-op.
	SubmitResult(ctx context.Context, matchID, submitterID, scoreSelf, scoreOpponent int) (*models.Match, error)

	RaiseDispute(ctx context.Context, matchID, raisedByID int, description string, evidenceRef *string) (*models.Dispute, error)
	// ResolveDispute writes the authoritative score chosen by the resolver
	// and completes the match. This is the only path that can set scores
	// on a disputed match.
	ResolveDispute(ctx context.Context, disputeID, resolverID, finalScore1, finalScore2 int) (*models.Match, error)

	// Forfeit ends a match without play. With a winner the bracket
	// advances normally; without one (both sides absent) the winner slot
	// upstream stays empty, same as a cancellation.
	Forfeit(ctx context.Context, matchID int, winnerParticipantID *int) (*models.Match, error)
	Cancel(ctx context.Context, matchID int) (*models.Match, error)

	// Sweep operations, driven by the cron scheduler. Each returns how
	// many matches it moved; losing a version race to another instance is
	// not an error, the work was simply done elsewhere.
	OpenDueCheckIns(ctx context.Context) (int, error)
	ForfeitExpiredCheckIns(ctx context.Context) (int, error)
	StartDueMatches(ctx context.Context) (int, error)
}

type matchService struct {
	tx             repositories.TxManager
	matchRepo      repositories.MatchRepository
	disputeRepo    repositories.DisputeRepository
	tournamentRepo repositories.TournamentRepository
	profileRepo    repositories.GameProfileRepository
	outbox         repositories.OutboxRepository
	dispatcher     *Dispatcher
	notifier       Notifier
	logger         *slog.Logger
}

func NewMatchService(
	tx repositories.TxManager,
	matchRepo repositories.MatchRepository,
	disputeRepo repositories.DisputeRepository,
	tournamentRepo repositories.TournamentRepository,
	profileRepo repositories.GameProfileRepository,
	outbox repositories.OutboxRepository,
	dispatcher *Dispatcher,
	notifier Notifier,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		tx:             tx,
		matchRepo:      matchRepo,
		disputeRepo:    disputeRepo,
		tournamentRepo: tournamentRepo,
		profileRepo:    profileRepo,
		outbox:         outbox,
		dispatcher:     dispatcher,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, status)
}

func (s *matchService) profileFor(ctx context.Context, tournamentID int) (*models.GameProfile, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	return s.profileRepo.GetByID(ctx, t.GameProfileID)
}

func (s *matchService) CheckIn(ctx context.Context, matchID, participantID int) (*models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	side := m.SideOf(participantID)
	if side == 0 {
		return nil, ErrNotAParticipant
	}
	if m.Status != models.MatchCheckIn {
		return nil, fmt.Errorf("%w: check-in is not open (status %q)", ErrInvalidMatchState, m.Status)
	}

	// Checking in twice is harmless.
	if (side == 1 && m.P1CheckedIn) || (side == 2 && m.P2CheckedIn) {
		return m, nil
	}
	if side == 1 {
		m.P1CheckedIn = true
	} else {
		m.P2CheckedIn = true
	}

	bothIn := m.P1CheckedIn && m.P2CheckedIn
	if bothIn {
		m.Status = models.MatchReady
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		if !bothIn {
			return nil
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchReady, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "participant checked in",
		slog.Int("match_id", m.ID),
		slog.Int("participant_id", participantID),
		slog.Bool("both_in", bothIn))
	return m, nil
}

func (s *matchService) Start(ctx context.Context, matchID int, lobby map[string]string) (*models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !models.ValidMatchTransition(m.Status, models.MatchLive) {
		return nil, fmt.Errorf("%w: cannot start from %q", ErrInvalidMatchState, m.Status)
	}

	now := time.Now()
	m.Status = models.MatchLive
	m.StartedAt = &now
	if lobby != nil {
		m.LobbyInfo = lobby
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchStarted, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}

	s.notifyMatch(m, "match_started")
	return m, nil
}

func (s *matchService) SubmitResult(ctx context.Context, matchID, submitterID, scoreSelf, scoreOpponent int) (*models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	side := m.SideOf(submitterID)
	if side == 0 {
		return nil, ErrNotAParticipant
	}

	// Normalize to the bracket's orientation before anything else.
	score1, score2 := scoreSelf, scoreOpponent
	if side == 2 {
		score1, score2 = scoreOpponent, scoreSelf
	}

	if m.Status == models.MatchCompleted {
		if derefInt(m.Score1) == score1 && derefInt(m.Score2) == score2 {
			return m, nil
		}
		return nil, fmt.Errorf("%w: match already completed with a different score", ErrInvalidMatchState)
	}

	profile, err := s.profileFor(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}
	if profile.DecideWinner(score1, score2) == 0 {
		return nil, ErrDrawNotAllowed
	}

	switch m.Status {
	case models.MatchLive:
		return s.submitFirst(ctx, m, submitterID, score1, score2)
	case models.MatchPendingResult:
		if m.PendingSubmitterID != nil && *m.PendingSubmitterID == submitterID {
			return s.submitFirst(ctx, m, submitterID, score1, score2)
		}
		return s.submitSecond(ctx, m, submitterID, score1, score2, profile)
	default:
		return nil, fmt.Errorf("%w: cannot submit a result from %q", ErrInvalidMatchState, m.Status)
	}
}

// submitFirst parks the claimed score; it also lets the original submitter
// amend their own claim while the opponent has not answered.
func (s *matchService) submitFirst(ctx context.Context, m *models.Match, submitterID, score1, score2 int) (*models.Match, error) {
	m.Status = models.MatchPendingResult
	m.PendingScore1 = intPtr(score1)
	m.PendingScore2 = intPtr(score2)
	m.PendingSubmitterID = intPtr(submitterID)

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicScoreUpdated, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *matchService) submitSecond(ctx context.Context, m *models.Match, submitterID, score1, score2 int, profile *models.GameProfile) (*models.Match, error) {
	if derefInt(m.PendingScore1) == score1 && derefInt(m.PendingScore2) == score2 {
		return s.complete(ctx, m, score1, score2, profile)
	}

	// The two sides disagree: freeze the match and open a dispute carrying
	// both claims.
	d := &models.Dispute{
		MatchID:         m.ID,
		RaisedByID:      submitterID,
		Reason:          models.DisputeScoreMismatch,
		Description:     "submitted scores disagree",
		ClaimedScore1P1: m.PendingScore1,
		ClaimedScore1P2: m.PendingScore2,
		ClaimedScore2P1: intPtr(score1),
		ClaimedScore2P2: intPtr(score2),
		Status:          models.DisputeOpen,
	}
	m.Status = models.MatchDisputed

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		if err := s.disputeRepo.Create(ctx, exec, d); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicDisputeRaised, events.DisputeEvent{
			TournamentID: m.TournamentID,
			MatchID:      m.ID,
			DisputeID:    d.ID,
			Status:       d.Status,
			OccurredAt:   time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "score mismatch, dispute opened",
		slog.Int("match_id", m.ID),
		slog.Int("dispute_id", d.ID))
	s.notifyMatch(m, "dispute_raised")
	return m, nil
}

func (s *matchService) complete(ctx context.Context, m *models.Match, score1, score2 int, profile *models.GameProfile) (*models.Match, error) {
	winnerSide := profile.DecideWinner(score1, score2)
	if winnerSide == 0 {
		return nil, ErrDrawNotAllowed
	}

	now := time.Now()
	m.Score1 = intPtr(score1)
	m.Score2 = intPtr(score2)
	if winnerSide == 1 {
		m.WinnerParticipantID = m.P1ParticipantID
		m.LoserParticipantID = m.P2ParticipantID
	} else {
		m.WinnerParticipantID = m.P2ParticipantID
		m.LoserParticipantID = m.P1ParticipantID
	}
	m.PendingScore1 = nil
	m.PendingScore2 = nil
	m.PendingSubmitterID = nil
	m.Status = models.MatchCompleted
	m.CompletedAt = &now

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchCompleted, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match completed",
		slog.Int("match_id", m.ID),
		slog.Int("winner_id", derefInt(m.WinnerParticipantID)))
	s.notifyMatch(m, "match_completed")
	return m, nil
}

func (s *matchService) RaiseDispute(ctx context.Context, matchID, raisedByID int, description string, evidenceRef *string) (*models.Dispute, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.SideOf(raisedByID) == 0 {
		return nil, ErrNotAParticipant
	}
	if m.Status != models.MatchPendingResult {
		return nil, fmt.Errorf("%w: can only dispute a pending result (status %q)", ErrInvalidMatchState, m.Status)
	}

	d := &models.Dispute{
		MatchID:         m.ID,
		RaisedByID:      raisedByID,
		Reason:          models.DisputeFlagged,
		Description:     description,
		EvidenceRef:     evidenceRef,
		ClaimedScore1P1: m.PendingScore1,
		ClaimedScore1P2: m.PendingScore2,
		Status:          models.DisputeOpen,
	}
	m.Status = models.MatchDisputed

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		if err := s.disputeRepo.Create(ctx, exec, d); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicDisputeRaised, events.DisputeEvent{
			TournamentID: m.TournamentID,
			MatchID:      m.ID,
			DisputeID:    d.ID,
			Status:       d.Status,
			OccurredAt:   time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *matchService) ResolveDispute(ctx context.Context, disputeID, resolverID, finalScore1, finalScore2 int) (*models.Match, error) {
	d, err := s.disputeRepo.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if d.Status != models.DisputeOpen {
		return nil, ErrDisputeNotOpen
	}

	m, err := s.GetMatch(ctx, d.MatchID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MatchDisputed {
		return nil, fmt.Errorf("%w: match is %q, not disputed", ErrInvalidMatchState, m.Status)
	}

	profile, err := s.profileFor(ctx, m.TournamentID)
	if err != nil {
		return nil, err
	}
	winnerSide := profile.DecideWinner(finalScore1, finalScore2)
	if winnerSide == 0 {
		return nil, ErrDrawNotAllowed
	}

	now := time.Now()
	m.Score1 = intPtr(finalScore1)
	m.Score2 = intPtr(finalScore2)
	if winnerSide == 1 {
		m.WinnerParticipantID = m.P1ParticipantID
		m.LoserParticipantID = m.P2ParticipantID
	} else {
		m.WinnerParticipantID = m.P2ParticipantID
		m.LoserParticipantID = m.P1ParticipantID
	}
	m.PendingScore1 = nil
	m.PendingScore2 = nil
	m.PendingSubmitterID = nil
	m.Status = models.MatchCompleted
	m.CompletedAt = &now

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.disputeRepo.Resolve(ctx, exec, d.ID, models.DisputeResolved, resolverID, m.Score1, m.Score2, now); err != nil {
			if errors.Is(err, repositories.ErrDisputeNotFound) {
				return ErrDisputeNotOpen
			}
			return err
		}
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		if err := appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicDisputeResolved, events.DisputeEvent{
			TournamentID: m.TournamentID,
			MatchID:      m.ID,
			DisputeID:    d.ID,
			Status:       models.DisputeResolved,
			OccurredAt:   now,
		}); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchCompleted, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "dispute resolved",
		slog.Int("dispute_id", d.ID),
		slog.Int("match_id", m.ID),
		slog.Int("resolver_id", resolverID))
	s.notifyMatch(m, "dispute_resolved")
	return m, nil
}

func (s *matchService) Forfeit(ctx context.Context, matchID int, winnerParticipantID *int) (*models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !models.ValidMatchTransition(m.Status, models.MatchForfeit) {
		return nil, fmt.Errorf("%w: cannot forfeit from %q", ErrInvalidMatchState, m.Status)
	}
	if winnerParticipantID != nil && m.SideOf(*winnerParticipantID) == 0 {
		return nil, ErrNotAParticipant
	}

	now := time.Now()
	m.Status = models.MatchForfeit
	m.CompletedAt = &now
	if winnerParticipantID != nil {
		m.WinnerParticipantID = winnerParticipantID
		if m.SideOf(*winnerParticipantID) == 1 {
			m.LoserParticipantID = m.P2ParticipantID
		} else {
			m.LoserParticipantID = m.P1ParticipantID
		}
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchForfeited, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "match forfeited",
		slog.Int("match_id", m.ID),
		slog.Any("winner_id", winnerParticipantID))
	s.notifyMatch(m, "match_forfeited")
	return m, nil
}

func (s *matchService) Cancel(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !models.ValidMatchTransition(m.Status, models.MatchCanceled) {
		return nil, fmt.Errorf("%w: cannot cancel from %q", ErrInvalidMatchState, m.Status)
	}

	now := time.Now()
	m.Status = models.MatchCanceled
	m.CompletedAt = &now

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, events.TopicMatchCanceled, matchEvent(m))
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *matchService) OpenDueCheckIns(ctx context.Context) (int, error) {
	due, err := s.matchRepo.ListDueForCheckIn(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	moved := 0
	for i := range due {
		m := due[i]
		m.Status = models.MatchCheckIn
		ok, err := s.sweepUpdate(ctx, &m, events.TopicCheckInOpened)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

func (s *matchService) ForfeitExpiredCheckIns(ctx context.Context) (int, error) {
	expired, err := s.matchRepo.ListWithExpiredCheckIn(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	now := time.Now()
	moved := 0
	for i := range expired {
		m := expired[i]
		m.Status = models.MatchForfeit
		m.CompletedAt = &now
		// The side that showed up wins; nobody showing up leaves the
		// winner empty and the upstream slot unfilled.
		switch {
		case m.P1CheckedIn && !m.P2CheckedIn:
			m.WinnerParticipantID = m.P1ParticipantID
			m.LoserParticipantID = m.P2ParticipantID
		case m.P2CheckedIn && !m.P1CheckedIn:
			m.WinnerParticipantID = m.P2ParticipantID
			m.LoserParticipantID = m.P1ParticipantID
		}
		ok, err := s.sweepUpdate(ctx, &m, events.TopicMatchForfeited)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

func (s *matchService) StartDueMatches(ctx context.Context) (int, error) {
	due, err := s.matchRepo.ListDueToStart(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	now := time.Now()
	moved := 0
	for i := range due {
		m := due[i]
		m.Status = models.MatchLive
		m.StartedAt = &now
		ok, err := s.sweepUpdate(ctx, &m, events.TopicMatchStarted)
		if err != nil {
			return moved, err
		}
		if ok {
			moved++
		}
	}
	return moved, nil
}

// sweepUpdate applies one sweep transition. A version conflict means another
// instance (or a user action) got there first; the sweep just moves on.
func (s *matchService) sweepUpdate(ctx context.Context, m *models.Match, topic string) (bool, error) {
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.matchRepo.Update(ctx, exec, m, m.Version); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, m.TournamentID, topic, matchEvent(m))
	})
	if errors.Is(err, repositories.ErrMatchVersionConflict) {
		s.logger.DebugContext(ctx, "sweep lost version race, skipping",
			slog.Int("match_id", m.ID))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *matchService) notifyMatch(m *models.Match, kind string) {
	if s.notifier == nil {
		return
	}
	ev := matchEvent(m)
	s.dispatcher.Go("notify_"+kind, func(ctx context.Context) error {
		return s.notifier.Notify(ctx, kind, ev)
	})
}
