package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var ErrNodeNotFound = errors.New("bracket node not found")

type NodeRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, nodes []models.BracketNode) error
	GetByPosition(ctx context.Context, bracketID, position int) (*models.BracketNode, error)
	ListByBracket(ctx context.Context, bracketID int) ([]models.BracketNode, error)
	// FillSlot writes a winner into one of a node's two slots. The write is
	// conditional so replaying the same advancement event is a no-op.
	FillSlot(ctx context.Context, exec SQLExecutor, nodeID, slot int, participantID int, name string) error
	SetWinner(ctx context.Context, exec SQLExecutor, nodeID, participantID int) error
	// LinkMatch attaches a newly spawned match; a node has at most one.
	LinkMatch(ctx context.Context, exec SQLExecutor, nodeID, matchID int) error
}

type postgresNodeRepository struct {
	db *sql.DB
}

func NewPostgresNodeRepository(db *sql.DB) NodeRepository {
	return &postgresNodeRepository{db: db}
}

const nodeColumns = `id, bracket_id, position, round, order_in_round, child1_pos, child2_pos,
	parent_pos, parent_slot, slot1_participant_id, slot2_participant_id, slot1_name, slot2_name,
	winner_participant_id, is_bye, is_bronze, match_id`

func scanNode(row interface{ Scan(...interface{}) error }, n *models.BracketNode) error {
	return row.Scan(
		&n.ID, &n.BracketID, &n.Position, &n.Round, &n.OrderInRound,
		&n.Child1Pos, &n.Child2Pos, &n.ParentPos, &n.ParentSlot,
		&n.Slot1ParticipantID, &n.Slot2ParticipantID, &n.Slot1Name, &n.Slot2Name,
		&n.WinnerParticipantID, &n.IsBye, &n.IsBronze, &n.MatchID,
	)
}

func (r *postgresNodeRepository) CreateBatch(ctx context.Context, exec SQLExecutor, nodes []models.BracketNode) error {
	query := `
		INSERT INTO bracket_nodes
			(bracket_id, position, round, order_in_round, child1_pos, child2_pos,
			 parent_pos, parent_slot, slot1_participant_id, slot2_participant_id,
			 slot1_name, slot2_name, winner_participant_id, is_bye, is_bronze)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`

	for i := range nodes {
		n := &nodes[i]
		err := exec.QueryRowContext(ctx, query,
			n.BracketID, n.Position, n.Round, n.OrderInRound, n.Child1Pos, n.Child2Pos,
			n.ParentPos, n.ParentSlot, n.Slot1ParticipantID, n.Slot2ParticipantID,
			n.Slot1Name, n.Slot2Name, n.WinnerParticipantID, n.IsBye, n.IsBronze,
		).Scan(&n.ID)
		if err != nil {
			return fmt.Errorf("failed to create bracket node at position %d: %w", n.Position, err)
		}
	}
	return nil
}

func (r *postgresNodeRepository) GetByPosition(ctx context.Context, bracketID, position int) (*models.BracketNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM bracket_nodes WHERE bracket_id = $1 AND position = $2`

	n := &models.BracketNode{}
	if err := scanNode(r.db.QueryRowContext(ctx, query, bracketID, position), n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket node %d/%d: %w", bracketID, position, err)
	}
	return n, nil
}

func (r *postgresNodeRepository) ListByBracket(ctx context.Context, bracketID int) ([]models.BracketNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM bracket_nodes WHERE bracket_id = $1 ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket nodes for bracket %d: %w", bracketID, err)
	}
	defer rows.Close()

	var out []models.BracketNode
	for rows.Next() {
		var n models.BracketNode
		if err := scanNode(rows, &n); err != nil {
			return nil, fmt.Errorf("failed to scan bracket node row: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *postgresNodeRepository) FillSlot(ctx context.Context, exec SQLExecutor, nodeID, slot int, participantID int, name string) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE bracket_nodes SET slot1_participant_id = $2, slot1_name = $3
			WHERE id = $1 AND (slot1_participant_id IS NULL OR slot1_participant_id = $2)`
	case 2:
		query = `UPDATE bracket_nodes SET slot2_participant_id = $2, slot2_name = $3
			WHERE id = $1 AND (slot2_participant_id IS NULL OR slot2_participant_id = $2)`
	default:
		return fmt.Errorf("invalid node slot %d", slot)
	}

	result, err := exec.ExecContext(ctx, query, nodeID, participantID, name)
	if err != nil {
		return fmt.Errorf("failed to fill slot %d of node %d: %w", slot, nodeID, err)
	}
	return checkAffectedRows(result, ErrNodeNotFound)
}

func (r *postgresNodeRepository) SetWinner(ctx context.Context, exec SQLExecutor, nodeID, participantID int) error {
	query := `UPDATE bracket_nodes SET winner_participant_id = $2
		WHERE id = $1 AND (winner_participant_id IS NULL OR winner_participant_id = $2)`

	result, err := exec.ExecContext(ctx, query, nodeID, participantID)
	if err != nil {
		return fmt.Errorf("failed to set winner on node %d: %w", nodeID, err)
	}
	return checkAffectedRows(result, ErrNodeNotFound)
}

func (r *postgresNodeRepository) LinkMatch(ctx context.Context, exec SQLExecutor, nodeID, matchID int) error {
	query := `UPDATE bracket_nodes SET match_id = $2
		WHERE id = $1 AND (match_id IS NULL OR match_id = $2)`

	result, err := exec.ExecContext(ctx, query, nodeID, matchID)
	if err != nil {
		return fmt.Errorf("failed to link match %d to node %d: %w", matchID, nodeID, err)
	}
	return checkAffectedRows(result, ErrNodeNotFound)
}
