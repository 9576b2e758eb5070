package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"golang.org/x/sync/errgroup"
)

type TournamentService interface {
	Create(ctx context.Context, t *models.Tournament) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetFull loads the tournament with its profile, participants and
	// bracket in parallel.
	GetFull(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tournament, error)
	// Cancel abandons a tournament; every non-terminal match is canceled
	// with it.
	Cancel(ctx context.Context, id int) error
}

type tournamentService struct {
	tx              repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	profileRepo     repositories.GameProfileRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	matchSvc        MatchService
	logger          *slog.Logger
}

func NewTournamentService(
	tx repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	profileRepo repositories.GameProfileRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	matchSvc MatchService,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		profileRepo:     profileRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		matchSvc:        matchSvc,
		logger:          logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, t *models.Tournament) (*models.Tournament, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrForbiddenOperation)
	}
	if _, err := brackets.ForName(t.Format); err != nil {
		return nil, err
	}
	if _, err := s.profileRepo.GetByID(ctx, t.GameProfileID); err != nil {
		if errors.Is(err, repositories.ErrGameProfileNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t.SeedingMethod == "" {
		t.SeedingMethod = models.SeedingSlotOrder
	}
	if t.StartDate.IsZero() {
		t.StartDate = time.Now()
	}
	t.Status = models.TournamentRegistration

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.Create(ctx, exec, t)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID),
		slog.String("format", t.Format))
	return t, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) GetFull(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := s.profileRepo.GetByID(gCtx, t.GameProfileID)
		if err != nil {
			return err
		}
		t.GameProfile = profile
		return nil
	})
	g.Go(func() error {
		participants, err := s.participantRepo.ListByTournament(gCtx, id)
		if err != nil {
			return err
		}
		t.Participants = participants
		return nil
	})
	g.Go(func() error {
		bracket, err := s.bracketRepo.GetByTournament(gCtx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrBracketNotFound) {
				return nil
			}
			return err
		}
		t.Bracket = bracket
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.tournamentRepo.List(ctx, limit, offset)
}

func (s *tournamentService) Cancel(ctx context.Context, id int) error {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !models.ValidTournamentTransition(t.Status, models.TournamentCanceled) {
		return fmt.Errorf("%w: cannot cancel a %q tournament", ErrInvalidMatchState, t.Status)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.tournamentRepo.UpdateStatus(ctx, exec, id, t.Status, models.TournamentCanceled)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentStatusConflict) {
			return fmt.Errorf("%w: status changed concurrently", ErrInvalidMatchState)
		}
		return err
	}

	// Cancel whatever is still playable. Each cancellation is its own
	// versioned transition; matches that finished in the meantime stay.
	matches, err := s.matchSvc.ListMatches(ctx, id, nil)
	if err != nil {
		return err
	}
	for i := range matches {
		if matches[i].Status.Terminal() {
			continue
		}
		if _, err := s.matchSvc.Cancel(ctx, matches[i].ID); err != nil &&
			!errors.Is(err, ErrInvalidMatchState) &&
			!errors.Is(err, repositories.ErrMatchVersionConflict) {
			return err
		}
	}

	s.logger.InfoContext(ctx, "tournament canceled", slog.Int("tournament_id", id))
	return nil
}
