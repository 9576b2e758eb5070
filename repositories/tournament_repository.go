package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentStatusConflict = errors.New("tournament status changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, limit, offset int) ([]*models.Tournament, error)
	// UpdateStatus flips the status conditionally on the expected current
	// value; ErrTournamentStatusConflict means another writer got there
	// first, which is how the single root-completion transition is decided.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, name, organizer_id, game_profile_id, format, seeding_method, status, start_date, third_place_match, created_at`

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, organizer_id, game_profile_id, format, seeding_method, status, start_date, third_place_match)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		t.Name, t.OrganizerID, t.GameProfileID, t.Format, t.SeedingMethod,
		t.Status, t.StartDate, t.ThirdPlaceMatch,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.OrganizerID, &t.GameProfileID, &t.Format,
		&t.SeedingMethod, &t.Status, &t.StartDate, &t.ThirdPlaceMatch, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var out []*models.Tournament
	for rows.Next() {
		t := &models.Tournament{}
		if err := rows.Scan(
			&t.ID, &t.Name, &t.OrganizerID, &t.GameProfileID, &t.Format,
			&t.SeedingMethod, &t.Status, &t.StartDate, &t.ThirdPlaceMatch, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1 WHERE id = $2 AND status = $3`

	result, err := exec.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("failed to update tournament %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusConflict)
}
