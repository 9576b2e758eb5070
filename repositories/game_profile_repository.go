package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrGameProfileNotFound = errors.New("game profile not found")

type GameProfileRepository interface {
	GetByID(ctx context.Context, id int) (*models.GameProfile, error)
	Create(ctx context.Context, exec SQLExecutor, p *models.GameProfile) error
}

type postgresGameProfileRepository struct {
	db *sql.DB
}

func NewPostgresGameProfileRepository(db *sql.DB) GameProfileRepository {
	return &postgresGameProfileRepository{db: db}
}

func (r *postgresGameProfileRepository) GetByID(ctx context.Context, id int) (*models.GameProfile, error) {
	query := `
		SELECT id, name, min_team_size, max_team_size, semantics, substitutes_per_match,
		       min_participants, check_in_window_seconds
		FROM game_profiles WHERE id = $1`

	p := &models.GameProfile{}
	var windowSeconds int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.MinTeamSize, &p.MaxTeamSize, &p.Semantics,
		&p.SubstitutesPerMatch, &p.MinParticipants, &windowSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameProfileNotFound
		}
		return nil, fmt.Errorf("failed to scan game profile %d: %w", id, err)
	}
	p.CheckInWindow = time.Duration(windowSeconds) * time.Second
	return p, nil
}

func (r *postgresGameProfileRepository) Create(ctx context.Context, exec SQLExecutor, p *models.GameProfile) error {
	query := `
		INSERT INTO game_profiles
			(name, min_team_size, max_team_size, semantics, substitutes_per_match,
			 min_participants, check_in_window_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		p.Name, p.MinTeamSize, p.MaxTeamSize, p.Semantics, p.SubstitutesPerMatch,
		p.MinParticipants, int64(p.CheckInWindow.Seconds()),
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create game profile %q: %w", p.Name, err)
	}
	return nil
}
