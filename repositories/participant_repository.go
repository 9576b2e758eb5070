package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrParticipantNotFound = errors.New("participant slot not found")

type ParticipantRepository interface {
	// CreateBatch imports the confirmed slots handed over by the
	// registration collaborator at lock time.
	CreateBatch(ctx context.Context, exec SQLExecutor, slots []models.ParticipantSlot) error
	GetByID(ctx context.Context, id int) (*models.ParticipantSlot, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]models.ParticipantSlot, error)
	// SetSeed records the rank assigned at lock time so standings and
	// tie-breaks can read it back later.
	SetSeed(ctx context.Context, exec SQLExecutor, id, seed int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, slots []models.ParticipantSlot) error {
	query := `
		INSERT INTO participant_slots
			(tournament_id, external_id, display_name, slot_number, seed, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	for i := range slots {
		s := &slots[i]
		err := exec.QueryRowContext(ctx, query,
			s.TournamentID, s.ExternalID, s.DisplayName, s.SlotNumber, s.Seed, s.RegisteredAt,
		).Scan(&s.ID)
		if err != nil {
			return fmt.Errorf("failed to create participant slot %q: %w", s.ExternalID, err)
		}
	}
	return nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.ParticipantSlot, error) {
	query := `
		SELECT id, tournament_id, external_id, display_name, slot_number, seed, registered_at
		FROM participant_slots WHERE id = $1`

	s := &models.ParticipantSlot{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.TournamentID, &s.ExternalID, &s.DisplayName, &s.SlotNumber, &s.Seed, &s.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to scan participant slot %d: %w", id, err)
	}
	return s, nil
}

func (r *postgresParticipantRepository) SetSeed(ctx context.Context, exec SQLExecutor, id, seed int) error {
	result, err := exec.ExecContext(ctx, `UPDATE participant_slots SET seed = $1 WHERE id = $2`, seed, id)
	if err != nil {
		return fmt.Errorf("failed to set seed for participant slot %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.ParticipantSlot, error) {
	query := `
		SELECT id, tournament_id, external_id, display_name, slot_number, seed, registered_at
		FROM participant_slots
		WHERE tournament_id = $1
		ORDER BY slot_number`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participant slots for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var out []models.ParticipantSlot
	for rows.Next() {
		var s models.ParticipantSlot
		if err := rows.Scan(&s.ID, &s.TournamentID, &s.ExternalID, &s.DisplayName, &s.SlotNumber, &s.Seed, &s.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant slot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
