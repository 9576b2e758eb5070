package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/events"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
	"github.com/Dosada05/bracket-engine/seeding"
	"golang.org/x/sync/errgroup"
)

type BracketService interface {
	// LockAndBuild closes registration, imports the confirmed slots handed
	// over by the registration collaborator, seeds them, builds the tree
	// and persists everything in one transaction. A partially built
	// bracket is never visible: is_finalized flips inside that same
	// transaction.
	LockAndBuild(ctx context.Context, tournamentID int, slots []models.ParticipantSlot, opts seeding.Options) (*models.Bracket, error)
	// GetBracket returns the finalized tree with its nodes.
	GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, error)
}

type bracketService struct {
	tx              repositories.TxManager
	tournamentRepo  repositories.TournamentRepository
	profileRepo     repositories.GameProfileRepository
	participantRepo repositories.ParticipantRepository
	bracketRepo     repositories.BracketRepository
	nodeRepo        repositories.NodeRepository
	matchRepo       repositories.MatchRepository
	outbox          repositories.OutboxRepository
	dispatcher      *Dispatcher
	notifier        Notifier
	logger          *slog.Logger
}

func NewBracketService(
	tx repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	profileRepo repositories.GameProfileRepository,
	participantRepo repositories.ParticipantRepository,
	bracketRepo repositories.BracketRepository,
	nodeRepo repositories.NodeRepository,
	matchRepo repositories.MatchRepository,
	outbox repositories.OutboxRepository,
	dispatcher *Dispatcher,
	notifier Notifier,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tx:              tx,
		tournamentRepo:  tournamentRepo,
		profileRepo:     profileRepo,
		participantRepo: participantRepo,
		bracketRepo:     bracketRepo,
		nodeRepo:        nodeRepo,
		matchRepo:       matchRepo,
		outbox:          outbox,
		dispatcher:      dispatcher,
		notifier:        notifier,
		logger:          logger,
	}
}

func (s *bracketService) LockAndBuild(ctx context.Context, tournamentID int, slots []models.ParticipantSlot, opts seeding.Options) (*models.Bracket, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := s.bracketRepo.GetByTournament(ctx, tournamentID); err == nil {
		return nil, ErrBracketAlreadyBuilt
	} else if !errors.Is(err, repositories.ErrBracketNotFound) {
		return nil, err
	}

	if tournament.Status != models.TournamentRegistration {
		return nil, fmt.Errorf("%w: status is %q", ErrTournamentNotLockable, tournament.Status)
	}

	profile, err := s.profileRepo.GetByID(ctx, tournament.GameProfileID)
	if err != nil {
		return nil, fmt.Errorf("failed to load game profile %d: %w", tournament.GameProfileID, err)
	}

	format, err := brackets.ForName(tournament.Format)
	if err != nil {
		return nil, err
	}

	var bracket *models.Bracket

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Locking flips the tournament to active; losing this conditional
		// write means someone locked concurrently.
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.TournamentRegistration, models.TournamentActive); err != nil {
			if errors.Is(err, repositories.ErrTournamentStatusConflict) {
				return ErrTournamentNotLockable
			}
			return err
		}

		for i := range slots {
			slots[i].TournamentID = tournamentID
		}
		if err := s.participantRepo.CreateBatch(ctx, exec, slots); err != nil {
			return err
		}

		// Callers address manual order by slot number; the seeding layer
		// wants the participant ids assigned just now.
		if tournament.SeedingMethod == models.SeedingManual {
			idBySlot := make(map[int]int, len(slots))
			for _, s := range slots {
				idBySlot[s.SlotNumber] = s.ID
			}
			ids := make([]int, 0, len(opts.ManualOrder))
			for _, num := range opts.ManualOrder {
				id, ok := idBySlot[num]
				if !ok {
					return fmt.Errorf("%w: slot %d is not registered", seeding.ErrInvalidSeedingInput, num)
				}
				ids = append(ids, id)
			}
			opts.ManualOrder = ids
		}

		seeds, err := seeding.Order(ctx, tournament.SeedingMethod, slots, opts)
		if err != nil {
			return err
		}
		for i := range seeds {
			rank := i + 1
			seeds[i].Seed = &rank
			if err := s.participantRepo.SetSeed(ctx, exec, seeds[i].ID, rank); err != nil {
				return err
			}
		}

		blueprint, err := format.Build(ctx, brackets.BuildParams{
			Tournament:      tournament,
			Seeds:           seeds,
			MinParticipants: profile.MinParticipants,
		})
		if err != nil {
			return err
		}

		bracket = &models.Bracket{
			TournamentID:  tournamentID,
			Format:        blueprint.Format,
			SeedingMethod: tournament.SeedingMethod,
			Size:          blueprint.Size,
			TotalRounds:   blueprint.TotalRounds,
			TotalMatches:  blueprint.TotalMatches,
		}
		if err := s.bracketRepo.Create(ctx, exec, bracket); err != nil {
			return err
		}

		for i := range blueprint.Nodes {
			blueprint.Nodes[i].BracketID = bracket.ID
		}
		if err := s.nodeRepo.CreateBatch(ctx, exec, blueprint.Nodes); err != nil {
			return err
		}
		nodeByPos := make(map[int]*models.BracketNode, len(blueprint.Nodes))
		for i := range blueprint.Nodes {
			nodeByPos[blueprint.Nodes[i].Position] = &blueprint.Nodes[i]
		}

		for i := range blueprint.InitialMatches {
			m := &blueprint.InitialMatches[i]
			if !m.ScheduledAt.IsZero() && profile.CheckInWindow > 0 {
				opens := m.ScheduledAt.Add(-profile.CheckInWindow)
				m.CheckInOpensAt = &opens
			}
			if err := s.matchRepo.Create(ctx, exec, m); err != nil {
				return err
			}
			if node, ok := nodeByPos[m.NodePos]; ok {
				if err := s.nodeRepo.LinkMatch(ctx, exec, node.ID, m.ID); err != nil {
					return err
				}
				node.MatchID = &m.ID
			}
			if err := appendEvent(ctx, exec, s.outbox, tournamentID, events.TopicMatchScheduled, matchEvent(m)); err != nil {
				return err
			}
		}

		if err := s.bracketRepo.Finalize(ctx, exec, bracket.ID); err != nil {
			return err
		}
		bracket.IsFinalized = true
		bracket.Nodes = blueprint.Nodes

		return appendEvent(ctx, exec, s.outbox, tournamentID, events.TopicBracketUpdated, events.BracketEvent{
			TournamentID: tournamentID,
			BracketID:    bracket.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "bracket built",
		slog.Int("tournament_id", tournamentID),
		slog.Int("size", bracket.Size),
		slog.Int("total_matches", bracket.TotalMatches))

	if s.notifier != nil {
		id := tournamentID
		s.dispatcher.Go("notify_bracket_locked", func(ctx context.Context) error {
			return s.notifier.Notify(ctx, "bracket_locked", map[string]int{"tournament_id": id})
		})
	}

	return bracket, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.Bracket, error) {
	bracket, err := s.bracketRepo.GetByTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !bracket.IsFinalized {
		return nil, ErrBracketNotFinalized
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		nodes, err := s.nodeRepo.ListByBracket(gCtx, bracket.ID)
		if err != nil {
			return err
		}
		bracket.Nodes = nodes
		return nil
	})

	var participants []models.ParticipantSlot
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gCtx, tournamentID)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	nameByID := make(map[int]string, len(participants))
	for _, p := range participants {
		nameByID[p.ID] = p.DisplayName
	}
	for i := range bracket.Nodes {
		n := &bracket.Nodes[i]
		if n.Slot1ParticipantID != nil && n.Slot1Name == nil {
			if name, ok := nameByID[*n.Slot1ParticipantID]; ok {
				n.Slot1Name = &name
			}
		}
		if n.Slot2ParticipantID != nil && n.Slot2Name == nil {
			if name, ok := nameByID[*n.Slot2ParticipantID]; ok {
				n.Slot2Name = &name
			}
		}
	}

	return bracket, nil
}
