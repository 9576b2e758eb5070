package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrBracketNotFound = errors.New("bracket not found")

type BracketRepository interface {
	Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error
	GetByTournament(ctx context.Context, tournamentID int) (*models.Bracket, error)
	// Finalize flips is_finalized; after that the tree structure is frozen.
	Finalize(ctx context.Context, exec SQLExecutor, bracketID int) error
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) Create(ctx context.Context, exec SQLExecutor, b *models.Bracket) error {
	query := `
		INSERT INTO brackets
			(tournament_id, format, seeding_method, size, total_rounds, total_matches, is_finalized)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		b.TournamentID, b.Format, b.SeedingMethod, b.Size, b.TotalRounds, b.TotalMatches, b.IsFinalized,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bracket for tournament %d: %w", b.TournamentID, err)
	}
	return nil
}

func (r *postgresBracketRepository) GetByTournament(ctx context.Context, tournamentID int) (*models.Bracket, error) {
	query := `
		SELECT id, tournament_id, format, seeding_method, size, total_rounds, total_matches, is_finalized, created_at
		FROM brackets WHERE tournament_id = $1`

	b := &models.Bracket{}
	err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(
		&b.ID, &b.TournamentID, &b.Format, &b.SeedingMethod, &b.Size,
		&b.TotalRounds, &b.TotalMatches, &b.IsFinalized, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket for tournament %d: %w", tournamentID, err)
	}
	return b, nil
}

func (r *postgresBracketRepository) Finalize(ctx context.Context, exec SQLExecutor, bracketID int) error {
	result, err := exec.ExecContext(ctx, `UPDATE brackets SET is_finalized = TRUE WHERE id = $1`, bracketID)
	if err != nil {
		return fmt.Errorf("failed to finalize bracket %d: %w", bracketID, err)
	}
	return checkAffectedRows(result, ErrBracketNotFound)
}
