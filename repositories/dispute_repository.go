package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrDisputeNotFound = errors.New("dispute not found")

type DisputeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, d *models.Dispute) error
	GetByID(ctx context.Context, id int) (*models.Dispute, error)
	GetOpenByMatch(ctx context.Context, matchID int) (*models.Dispute, error)
	Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, resolverID int, finalScore1, finalScore2 *int, resolvedAt time.Time) error
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

const disputeColumns = `id, match_id, raised_by_id, reason, description, evidence_ref,
	claimed_score1_p1, claimed_score1_p2, claimed_score2_p1, claimed_score2_p2,
	status, resolver_id, final_score1, final_score2, created_at, resolved_at`

func scanDispute(row interface{ Scan(...interface{}) error }, d *models.Dispute) error {
	return row.Scan(
		&d.ID, &d.MatchID, &d.RaisedByID, &d.Reason, &d.Description, &d.EvidenceRef,
		&d.ClaimedScore1P1, &d.ClaimedScore1P2, &d.ClaimedScore2P1, &d.ClaimedScore2P2,
		&d.Status, &d.ResolverID, &d.FinalScore1, &d.FinalScore2, &d.CreatedAt, &d.ResolvedAt,
	)
}

func (r *postgresDisputeRepository) Create(ctx context.Context, exec SQLExecutor, d *models.Dispute) error {
	query := `
		INSERT INTO disputes
			(match_id, raised_by_id, reason, description, evidence_ref,
			 claimed_score1_p1, claimed_score1_p2, claimed_score2_p1, claimed_score2_p2, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		d.MatchID, d.RaisedByID, d.Reason, d.Description, d.EvidenceRef,
		d.ClaimedScore1P1, d.ClaimedScore1P2, d.ClaimedScore2P1, d.ClaimedScore2P2, d.Status,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create dispute for match %d: %w", d.MatchID, err)
	}
	return nil
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = $1`

	d := &models.Dispute{}
	if err := scanDispute(r.db.QueryRowContext(ctx, query, id), d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %d: %w", id, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) GetOpenByMatch(ctx context.Context, matchID int) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE match_id = $1 AND status = $2`

	d := &models.Dispute{}
	if err := scanDispute(r.db.QueryRowContext(ctx, query, matchID, models.DisputeOpen), d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan open dispute for match %d: %w", matchID, err)
	}
	return d, nil
}

func (r *postgresDisputeRepository) Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, resolverID int, finalScore1, finalScore2 *int, resolvedAt time.Time) error {
	query := `
		UPDATE disputes
		SET status = $2, resolver_id = $3, final_score1 = $4, final_score2 = $5, resolved_at = $6
		WHERE id = $1 AND status = $7`

	result, err := exec.ExecContext(ctx, query, id, status, resolverID, finalScore1, finalScore2, resolvedAt, models.DisputeOpen)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}
