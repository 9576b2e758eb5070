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
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchVersionConflict = errors.New("match modified concurrently")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, m *models.Match) error
	// CreateForNode inserts a match only if the node has none yet; the
	// returned flag says whether this call created it. Idempotent under
	// at-least-once advancement delivery.
	CreateForNode(ctx context.Context, exec SQLExecutor, m *models.Match) (bool, error)
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByNode(ctx context.Context, tournamentID, nodePos int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]models.Match, error)
	ListDueForCheckIn(ctx context.Context, now time.Time) ([]models.Match, error)
	ListWithExpiredCheckIn(ctx context.Context, now time.Time) ([]models.Match, error)
	ListDueToStart(ctx context.Context, now time.Time) ([]models.Match, error)
	// Update writes every mutable field conditionally on the version the
	// caller read and bumps it. ErrMatchVersionConflict means a concurrent
	// writer won; reload and retry.
	Update(ctx context.Context, exec SQLExecutor, m *models.Match, expectedVersion int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, node_pos, round, p1_participant_id, p2_participant_id,
	score1, score2, pending_score1, pending_score2, pending_submitter_id, status, version,
	p1_checked_in, p2_checked_in, winner_participant_id, loser_participant_id, lobby_info,
	scheduled_at, check_in_opens_at, started_at, completed_at, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	var lobby []byte
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.NodePos, &m.Round, &m.P1ParticipantID, &m.P2ParticipantID,
		&m.Score1, &m.Score2, &m.PendingScore1, &m.PendingScore2, &m.PendingSubmitterID,
		&m.Status, &m.Version, &m.P1CheckedIn, &m.P2CheckedIn,
		&m.WinnerParticipantID, &m.LoserParticipantID, &lobby,
		&m.ScheduledAt, &m.CheckInOpensAt, &m.StartedAt, &m.CompletedAt, &m.CreatedAt,
	)
	if err != nil {
		return err
	}
	if len(lobby) > 0 {
		if err := json.Unmarshal(lobby, &m.LobbyInfo); err != nil {
			return fmt.Errorf("failed to decode lobby info for match %d: %w", m.ID, err)
		}
	}
	return nil
}

func marshalLobby(m *models.Match) ([]byte, error) {
	if m.LobbyInfo == nil {
		return nil, nil
	}
	return json.Marshal(m.LobbyInfo)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	lobby, err := marshalLobby(m)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO matches
			(tournament_id, node_pos, round, p1_participant_id, p2_participant_id,
			 status, version, lobby_info, scheduled_at, check_in_opens_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8, $9)
		RETURNING id, version, created_at`

	err = exec.QueryRowContext(ctx, query,
		m.TournamentID, m.NodePos, m.Round, m.P1ParticipantID, m.P2ParticipantID,
		m.Status, lobby, m.ScheduledAt, m.CheckInOpensAt,
	).Scan(&m.ID, &m.Version, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match for node %d: %w", m.NodePos, err)
	}
	return nil
}

func (r *postgresMatchRepository) CreateForNode(ctx context.Context, exec SQLExecutor, m *models.Match) (bool, error) {
	lobby, err := marshalLobby(m)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO matches
			(tournament_id, node_pos, round, p1_participant_id, p2_participant_id,
			 status, version, lobby_info, scheduled_at, check_in_opens_at)
		SELECT $1, $2, $3, $4, $5, $6, 1, $7, $8, $9
		WHERE NOT EXISTS (
			SELECT 1 FROM matches WHERE tournament_id = $1 AND node_pos = $2
		)
		RETURNING id, version, created_at`

	err = exec.QueryRowContext(ctx, query,
		m.TournamentID, m.NodePos, m.Round, m.P1ParticipantID, m.P2ParticipantID,
		m.Status, lobby, m.ScheduledAt, m.CheckInOpensAt,
	).Scan(&m.ID, &m.Version, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create match for node %d: %w", m.NodePos, err)
	}
	return true, nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	if err := scanMatch(r.db.QueryRowContext(ctx, query, id), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByNode(ctx context.Context, tournamentID, nodePos int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND node_pos = $2`

	m := &models.Match{}
	if err := scanMatch(r.db.QueryRowContext(ctx, query, tournamentID, nodePos), m); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match at node %d: %w", nodePos, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY round, node_pos`

	return r.list(ctx, query, args...)
}

func (r *postgresMatchRepository) ListDueForCheckIn(ctx context.Context, now time.Time) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE status = $1 AND check_in_opens_at IS NOT NULL AND check_in_opens_at <= $2`
	return r.list(ctx, query, models.MatchScheduled, now)
}

func (r *postgresMatchRepository) ListWithExpiredCheckIn(ctx context.Context, now time.Time) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE status = $1 AND scheduled_at <= $2`
	return r.list(ctx, query, models.MatchCheckIn, now)
}

func (r *postgresMatchRepository) ListDueToStart(ctx context.Context, now time.Time) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE status = $1 AND scheduled_at <= $2`
	return r.list(ctx, query, models.MatchReady, now)
}

func (r *postgresMatchRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var m models.Match
		if err := scanMatch(rows, &m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, m *models.Match, expectedVersion int) error {
	lobby, err := marshalLobby(m)
	if err != nil {
		return err
	}

	query := `
		UPDATE matches SET
			p1_participant_id = $3, p2_participant_id = $4,
			score1 = $5, score2 = $6,
			pending_score1 = $7, pending_score2 = $8, pending_submitter_id = $9,
			status = $10, p1_checked_in = $11, p2_checked_in = $12,
			winner_participant_id = $13, loser_participant_id = $14,
			lobby_info = $15, scheduled_at = $16, check_in_opens_at = $17,
			started_at = $18, completed_at = $19,
			version = version + 1
		WHERE id = $1 AND version = $2`

	result, err := exec.ExecContext(ctx, query,
		m.ID, expectedVersion,
		m.P1ParticipantID, m.P2ParticipantID,
		m.Score1, m.Score2,
		m.PendingScore1, m.PendingScore2, m.PendingSubmitterID,
		m.Status, m.P1CheckedIn, m.P2CheckedIn,
		m.WinnerParticipantID, m.LoserParticipantID,
		lobby, m.ScheduledAt, m.CheckInOpensAt, m.StartedAt, m.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update match %d: %w", m.ID, err)
	}
	if err := checkAffectedRows(result, ErrMatchVersionConflict); err != nil {
		return err
	}
	m.Version = expectedVersion + 1
	return nil
}
