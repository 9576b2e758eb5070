package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
)

var (
	ErrResultNotFound      = errors.New("tournament result not found")
	ErrResultAlreadyExists = errors.New("tournament result already exists")
)

type ResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, res *models.TournamentResult) error
	GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentResult, error)
	// Override is the audited mutation path; everything else is immutable.
	Override(ctx context.Context, exec SQLExecutor, res *models.TournamentResult, overriddenBy int, reason string, at time.Time) error
}

type postgresResultRepository struct {
	db *sql.DB
}

func NewPostgresResultRepository(db *sql.DB) ResultRepository {
	return &postgresResultRepository{db: db}
}

func (r *postgresResultRepository) Create(ctx context.Context, exec SQLExecutor, res *models.TournamentResult) error {
	log, err := json.Marshal(res.TieBreakLog)
	if err != nil {
		return fmt.Errorf("failed to encode tie-break log: %w", err)
	}

	query := `
		INSERT INTO tournament_results
			(tournament_id, winner_id, runner_up_id, third_place_id,
			 determination_method, tie_break_log, requires_review)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (SELECT 1 FROM tournament_results WHERE tournament_id = $1)
		RETURNING id, created_at`

	err = exec.QueryRowContext(ctx, query,
		res.TournamentID, res.WinnerID, res.RunnerUpID, res.ThirdPlaceID,
		res.DeterminationMethod, log, res.RequiresReview,
	).Scan(&res.ID, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrResultAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to create result for tournament %d: %w", res.TournamentID, err)
	}
	return nil
}

func (r *postgresResultRepository) GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentResult, error) {
	query := `
		SELECT id, tournament_id, winner_id, runner_up_id, third_place_id,
		       determination_method, tie_break_log, requires_review,
		       overridden_by_id, override_reason, created_at, overridden_at
		FROM tournament_results WHERE tournament_id = $1`

	res := &models.TournamentResult{}
	var log []byte
	err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(
		&res.ID, &res.TournamentID, &res.WinnerID, &res.RunnerUpID, &res.ThirdPlaceID,
		&res.DeterminationMethod, &log, &res.RequiresReview,
		&res.OverriddenByID, &res.OverrideReason, &res.CreatedAt, &res.OverriddenAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to scan result for tournament %d: %w", tournamentID, err)
	}
	if len(log) > 0 {
		if err := json.Unmarshal(log, &res.TieBreakLog); err != nil {
			return nil, fmt.Errorf("failed to decode tie-break log for tournament %d: %w", tournamentID, err)
		}
	}
	return res, nil
}

func (r *postgresResultRepository) Override(ctx context.Context, exec SQLExecutor, res *models.TournamentResult, overriddenBy int, reason string, at time.Time) error {
	query := `
		UPDATE tournament_results
		SET winner_id = $2, runner_up_id = $3, third_place_id = $4,
		    requires_review = FALSE, overridden_by_id = $5, override_reason = $6, overridden_at = $7
		WHERE id = $1`

	result, err := exec.ExecContext(ctx, query,
		res.ID, res.WinnerID, res.RunnerUpID, res.ThirdPlaceID, overriddenBy, reason, at,
	)
	if err != nil {
		return fmt.Errorf("failed to override result %d: %w", res.ID, err)
	}
	return checkAffectedRows(result, ErrResultNotFound)
}
