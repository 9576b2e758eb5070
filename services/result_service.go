package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// PayoutPolicy maps a placement (1, 2, 3) to a prize in cents. Placements
// without an entry pay nothing.
type PayoutPolicy map[int]int64

type ResultService interface {
	// ResolveTournament computes the final placements once the deciding
	// nodes are settled, writes the TournamentResult and completes the
	// tournament in one transaction. Safe to call repeatedly: a second
	// call finds the result already written and does nothing.
	ResolveTournament(ctx context.Context, tournamentID int) error
	GetResult(ctx context.Context, tournamentID int) (*models.TournamentResult, error)
	// OverrideResult is the audited escape hatch for results flagged
	// requires_review, or for operator corrections.
	OverrideResult(ctx context.Context, tournamentID, overriddenBy, winnerID, runnerUpID int, thirdPlaceID *int, reason string) (*models.TournamentResult, error)
}

type resultService struct {
	tx              repositories.TxManager
	resultRepo      repositories.ResultRepository
	tournamentRepo  repositories.TournamentRepository
	bracketRepo     repositories.BracketRepository
	nodeRepo        repositories.NodeRepository
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	outbox          repositories.OutboxRepository
	dispatcher      *Dispatcher
	wallet          WalletService
	certificates    CertificateService
	notifier        Notifier
	payouts         PayoutPolicy
	logger          *slog.Logger
}

func NewResultService(
	tx repositories.TxManager,
	resultRepo repositories.ResultRepository,
	tournamentRepo repositories.TournamentRepository,
	bracketRepo repositories.BracketRepository,
	nodeRepo repositories.NodeRepository,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	outbox repositories.OutboxRepository,
	dispatcher *Dispatcher,
	wallet WalletService,
	certificates CertificateService,
	notifier Notifier,
	payouts PayoutPolicy,
	logger *slog.Logger,
) ResultService {
	return &resultService{
		tx:              tx,
		resultRepo:      resultRepo,
		tournamentRepo:  tournamentRepo,
		bracketRepo:     bracketRepo,
		nodeRepo:        nodeRepo,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		outbox:          outbox,
		dispatcher:      dispatcher,
		wallet:          wallet,
		certificates:    certificates,
		notifier:        notifier,
		payouts:         payouts,
		logger:          logger,
	}
}

func (s *resultService) ResolveTournament(ctx context.Context, tournamentID int) error {
	bracket, err := s.bracketRepo.GetByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	root, err := s.nodeRepo.GetByPosition(ctx, bracket.ID, 1)
	if err != nil {
		return err
	}
	if root.WinnerParticipantID == nil {
		return ErrResultNotReady
	}

	winnerID := *root.WinnerParticipantID
	runnerUpID, ok := otherOccupant(root, winnerID)
	if !ok {
		return ErrResultNotReady
	}

	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return err
	}

	res := &models.TournamentResult{
		TournamentID:        tournamentID,
		WinnerID:            winnerID,
		RunnerUpID:          runnerUpID,
		DeterminationMethod: "bracket",
	}

	if bracket.TotalRounds >= 2 {
		if err := s.determineThird(ctx, bracket, matches, res); err != nil {
			return err
		}
	}

	// Any placement that sits on a forfeit chain is a weak signal: the
	// result still resolves deterministically, but a human confirms it.
	placed := []int{winnerID, runnerUpID}
	if res.ThirdPlaceID != nil {
		placed = append(placed, *res.ThirdPlaceID)
	}
	for _, id := range placed {
		if onForfeitChain(matches, id) {
			res.RequiresReview = true
			break
		}
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.resultRepo.Create(ctx, exec, res); err != nil {
			return err
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.TournamentActive, models.TournamentCompleted); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, tournamentID, events.TopicTournamentCompleted, events.TournamentCompletedEvent{
			TournamentID:   tournamentID,
			WinnerID:       res.WinnerID,
			RunnerUpID:     res.RunnerUpID,
			ThirdPlaceID:   res.ThirdPlaceID,
			RequiresReview: res.RequiresReview,
			OccurredAt:     time.Now(),
		})
	})
	if errors.Is(err, repositories.ErrResultAlreadyExists) {
		// Another advancement delivery resolved first.
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "tournament resolved",
		slog.Int("tournament_id", tournamentID),
		slog.Int("winner_id", res.WinnerID),
		slog.Int("runner_up_id", res.RunnerUpID),
		slog.Any("third_place_id", res.ThirdPlaceID),
		slog.String("method", res.DeterminationMethod),
		slog.Bool("requires_review", res.RequiresReview))

	s.dispatchRewards(tournamentID, res)
	return nil
}

// determineThird fills ThirdPlaceID. A played bronze match is authoritative;
// otherwise the tie-break cascade distinguishes the semifinal losers, and an
// exhausted cascade leaves third unset with requires_review raised.
func (s *resultService) determineThird(ctx context.Context, bracket *models.Bracket, matches []models.Match, res *models.TournamentResult) error {
	bronze, err := s.nodeRepo.GetByPosition(ctx, bracket.ID, bracket.Size)
	if err != nil && !errors.Is(err, repositories.ErrNodeNotFound) {
		return err
	}
	if bronze != nil {
		if bronze.WinnerParticipantID != nil {
			res.ThirdPlaceID = bronze.WinnerParticipantID
			res.DeterminationMethod = string(models.RuleBronzeMatch)
			res.TieBreakLog = append(res.TieBreakLog, models.TieBreakStep{
				Rule:    models.RuleBronzeMatch,
				Outcome: fmt.Sprintf("participant %d won the third-place match", *bronze.WinnerParticipantID),
				Decided: true,
			})
			return nil
		}
		if bronze.BothSlotsFilled() {
			// The bronze match exists and has not finished yet.
			return ErrResultNotReady
		}
		// A semifinal settled without a loser (bye or cancellation), so
		// the bronze match can never be played. Fall through to the
		// cascade with whatever candidates exist.
	}

	candidates := semifinalLosers(ctx, s.nodeRepo, bracket)
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		res.ThirdPlaceID = intPtr(candidates[0])
		return nil
	}

	third, steps, err := s.tieBreak(ctx, matches, candidates[0], candidates[1])
	if err != nil {
		return err
	}
	res.TieBreakLog = append(res.TieBreakLog, steps...)
	if third != 0 {
		res.ThirdPlaceID = intPtr(third)
		res.DeterminationMethod = string(steps[len(steps)-1].Rule)
	} else {
		res.RequiresReview = true
	}
	return nil
}

// tieBreak runs the placement cascade over two candidates. Returns the
// winning candidate id, or 0 when every rule is exhausted; the step log
// records each rule in evaluation order. Given the same match history the
// cascade always returns the same answer.
func (s *resultService) tieBreak(ctx context.Context, matches []models.Match, a, b int) (int, []models.TieBreakStep, error) {
	var steps []models.TieBreakStep

	// 1. Head-to-head, if they ever played.
	if w := headToHead(matches, a, b); w != 0 {
		steps = append(steps, models.TieBreakStep{
			Rule:    models.RuleHeadToHead,
			Outcome: fmt.Sprintf("participant %d beat %d directly", w, other(w, a, b)),
			Decided: true,
		})
		return w, steps, nil
	}
	steps = append(steps, models.TieBreakStep{
		Rule:    models.RuleHeadToHead,
		Outcome: "never played each other",
	})

	// 2. Aggregate score differential over every completed match.
	// Forfeits and cancellations carry no scores and contribute nothing.
	diffA, diffB := scoreDiff(matches, a), scoreDiff(matches, b)
	if diffA != diffB {
		w := a
		if diffB > diffA {
			w = b
		}
		steps = append(steps, models.TieBreakStep{
			Rule:    models.RuleScoreDiff,
			Outcome: fmt.Sprintf("differentials %+d vs %+d", diffA, diffB),
			Decided: true,
		})
		return w, steps, nil
	}
	steps = append(steps, models.TieBreakStep{
		Rule:    models.RuleScoreDiff,
		Outcome: fmt.Sprintf("identical differential %+d", diffA),
	})

	// 3. Better original seed.
	seedA, errA := s.seedOf(ctx, a)
	seedB, errB := s.seedOf(ctx, b)
	if errA != nil {
		return 0, nil, errA
	}
	if errB != nil {
		return 0, nil, errB
	}
	if seedA != seedB && seedA > 0 && seedB > 0 {
		w := a
		if seedB < seedA {
			w = b
		}
		steps = append(steps, models.TieBreakStep{
			Rule:    models.RuleHigherSeed,
			Outcome: fmt.Sprintf("seeds %d vs %d", seedA, seedB),
			Decided: true,
		})
		return w, steps, nil
	}
	steps = append(steps, models.TieBreakStep{
		Rule:    models.RuleHigherSeed,
		Outcome: "identical seed",
	})

	// 4. Earlier elimination-match completion.
	tA, tB := lastCompletion(matches, a), lastCompletion(matches, b)
	if !tA.IsZero() && !tB.IsZero() && !tA.Equal(tB) {
		w := a
		if tB.Before(tA) {
			w = b
		}
		steps = append(steps, models.TieBreakStep{
			Rule:    models.RuleEarlierFinish,
			Outcome: fmt.Sprintf("finished at %s vs %s", tA.Format(time.RFC3339), tB.Format(time.RFC3339)),
			Decided: true,
		})
		return w, steps, nil
	}

	// 5. Exhausted: never guess.
	steps = append(steps, models.TieBreakStep{
		Rule:    models.RuleUnresolved,
		Outcome: "all rules exhausted, third place left unset",
	})
	return 0, steps, nil
}

func (s *resultService) seedOf(ctx context.Context, participantID int) (int, error) {
	p, err := s.participantRepo.GetByID(ctx, participantID)
	if err != nil {
		return 0, err
	}
	return derefInt(p.Seed), nil
}

func (s *resultService) GetResult(ctx context.Context, tournamentID int) (*models.TournamentResult, error) {
	res, err := s.resultRepo.GetByTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrResultNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (s *resultService) OverrideResult(ctx context.Context, tournamentID, overriddenBy, winnerID, runnerUpID int, thirdPlaceID *int, reason string) (*models.TournamentResult, error) {
	if winnerID == runnerUpID ||
		(thirdPlaceID != nil && (*thirdPlaceID == winnerID || *thirdPlaceID == runnerUpID)) {
		return nil, fmt.Errorf("%w: placements must be distinct", ErrForbiddenOperation)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: an override requires a reason", ErrForbiddenOperation)
	}

	res, err := s.GetResult(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res.WinnerID = winnerID
	res.RunnerUpID = runnerUpID
	res.ThirdPlaceID = thirdPlaceID
	res.RequiresReview = false
	res.OverriddenByID = intPtr(overriddenBy)
	res.OverrideReason = &reason
	res.OverriddenAt = &now

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.resultRepo.Override(ctx, exec, res, overriddenBy, reason, now); err != nil {
			return err
		}
		return appendEvent(ctx, exec, s.outbox, tournamentID, events.TopicTournamentCompleted, events.TournamentCompletedEvent{
			TournamentID: tournamentID,
			WinnerID:     res.WinnerID,
			RunnerUpID:   res.RunnerUpID,
			ThirdPlaceID: res.ThirdPlaceID,
			OccurredAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "result overridden",
		slog.Int("tournament_id", tournamentID),
		slog.Int("overridden_by", overriddenBy),
		slog.String("reason", reason))
	return res, nil
}

// dispatchRewards runs the post-commit collaborator calls: prize payouts,
// placement certificates, notifications. Each carries a (tournament,
// participant, purpose) idempotency key so redispatch after a crash cannot
// double-pay.
func (s *resultService) dispatchRewards(tournamentID int, res *models.TournamentResult) {
	type placement struct {
		rank          int
		participantID int
	}
	placements := []placement{
		{1, res.WinnerID},
		{2, res.RunnerUpID},
	}
	if res.ThirdPlaceID != nil {
		placements = append(placements, placement{3, *res.ThirdPlaceID})
	}

	for _, p := range placements {
		p := p
		if s.wallet != nil {
			if amount, ok := s.payouts[p.rank]; ok && amount > 0 {
				key := IdempotencyKey{TournamentID: tournamentID, ParticipantID: p.participantID, Purpose: fmt.Sprintf("prize_%d", p.rank)}
				s.dispatcher.Go("wallet_credit_"+key.String(), func(ctx context.Context) error {
					return s.wallet.Credit(ctx, key, p.participantID, amount)
				})
			}
		}
		if s.certificates != nil {
			s.dispatcher.Go(fmt.Sprintf("certificate_t%d_p%d", tournamentID, p.participantID), func(ctx context.Context) error {
				_, err := s.certificates.Issue(ctx, tournamentID, p.participantID, p.rank)
				return err
			})
		}
	}

	if s.notifier != nil {
		ev := events.TournamentCompletedEvent{
			TournamentID:   tournamentID,
			WinnerID:       res.WinnerID,
			RunnerUpID:     res.RunnerUpID,
			ThirdPlaceID:   res.ThirdPlaceID,
			RequiresReview: res.RequiresReview,
			OccurredAt:     time.Now(),
		}
		s.dispatcher.Go("notify_tournament_completed", func(ctx context.Context) error {
			return s.notifier.Notify(ctx, "tournament_completed", ev)
		})
	}
}

func otherOccupant(node *models.BracketNode, participantID int) (int, bool) {
	if node.Slot1ParticipantID != nil && *node.Slot1ParticipantID != participantID {
		return *node.Slot1ParticipantID, true
	}
	if node.Slot2ParticipantID != nil && *node.Slot2ParticipantID != participantID {
		return *node.Slot2ParticipantID, true
	}
	return 0, false
}

// semifinalLosers returns the losers of nodes 2 and 3 in a stable order.
// A semifinal that settled without a loser contributes nothing.
func semifinalLosers(ctx context.Context, nodes repositories.NodeRepository, bracket *models.Bracket) []int {
	var out []int
	for _, pos := range []int{2, 3} {
		node, err := nodes.GetByPosition(ctx, bracket.ID, pos)
		if err != nil {
			continue
		}
		if node.WinnerParticipantID == nil {
			continue
		}
		if loser, ok := otherOccupant(node, *node.WinnerParticipantID); ok {
			out = append(out, loser)
		}
	}
	sort.Ints(out)
	return out
}

func headToHead(matches []models.Match, a, b int) int {
	for i := range matches {
		m := &matches[i]
		if m.Status != models.MatchCompleted || m.WinnerParticipantID == nil {
			continue
		}
		if m.SideOf(a) != 0 && m.SideOf(b) != 0 {
			return *m.WinnerParticipantID
		}
	}
	return 0
}

func scoreDiff(matches []models.Match, participantID int) int {
	diff := 0
	for i := range matches {
		m := &matches[i]
		if m.Status != models.MatchCompleted || m.Score1 == nil || m.Score2 == nil {
			continue
		}
		switch m.SideOf(participantID) {
		case 1:
			diff += *m.Score1 - *m.Score2
		case 2:
			diff += *m.Score2 - *m.Score1
		}
	}
	return diff
}

func lastCompletion(matches []models.Match, participantID int) time.Time {
	var last time.Time
	for i := range matches {
		m := &matches[i]
		if m.CompletedAt == nil || m.SideOf(participantID) == 0 {
			continue
		}
		if m.CompletedAt.After(last) {
			last = *m.CompletedAt
		}
	}
	return last
}

func onForfeitChain(matches []models.Match, participantID int) bool {
	for i := range matches {
		m := &matches[i]
		if m.Status == models.MatchForfeit && m.SideOf(participantID) != 0 {
			return true
		}
	}
	return false
}

func other(winner, a, b int) int {
	if winner == a {
		return b
	}
	return a
}
