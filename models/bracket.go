package models

import "time"

// Bracket is the frozen tree structure of one tournament. Once IsFinalized
// is set the node count and parent/child wiring never change; only match
// outcomes do.
type Bracket struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Format       string    `json:"format" db:"format"`
	SeedingMethod SeedingMethod `json:"seeding_method" db:"seeding_method"`
	Size         int       `json:"size" db:"size"`
	TotalRounds  int       `json:"total_rounds" db:"total_rounds"`
	TotalMatches int       `json:"total_matches" db:"total_matches"`
	IsFinalized  bool      `json:"is_finalized" db:"is_finalized"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Nodes []BracketNode `json:"nodes,omitempty" db:"-"`
}

// BracketNode is one position in the bracket tree. Nodes form an arena
// addressed by Position: the final sits at position 1 and the children of
// position p are 2p and 2p+1, so parent/child references are plain integers
// and the whole tree serializes trivially.
type BracketNode struct {
	ID           int    `json:"id" db:"id"`
	BracketID    int    `json:"bracket_id" db:"bracket_id"`
	Position     int    `json:"position" db:"position"`
	Round        int    `json:"round" db:"round"`
	OrderInRound int    `json:"order_in_round" db:"order_in_round"`

	// Positions, zero when absent. ParentSlot says which of the parent's
	// two slots this node's winner fills.
	Child1Pos  int `json:"child1_pos" db:"child1_pos"`
	Child2Pos  int `json:"child2_pos" db:"child2_pos"`
	ParentPos  int `json:"parent_pos" db:"parent_pos"`
	ParentSlot int `json:"parent_slot" db:"parent_slot"`

	Slot1ParticipantID *int    `json:"slot1_participant_id,omitempty" db:"slot1_participant_id"`
	Slot2ParticipantID *int    `json:"slot2_participant_id,omitempty" db:"slot2_participant_id"`
	Slot1Name          *string `json:"slot1_name,omitempty" db:"slot1_name"`
	Slot2Name          *string `json:"slot2_name,omitempty" db:"slot2_name"`

	WinnerParticipantID *int `json:"winner_participant_id,omitempty" db:"winner_participant_id"`

	IsBye    bool `json:"is_bye" db:"is_bye"`
	IsBronze bool `json:"is_bronze" db:"is_bronze"`

	MatchID *int `json:"match_id,omitempty" db:"match_id"`
}

// IsRoot reports whether this node decides the tournament.
func (n *BracketNode) IsRoot() bool {
	return n.ParentPos == 0 && !n.IsBronze
}

// BothSlotsFilled reports whether the node is ready to spawn its match.
func (n *BracketNode) BothSlotsFilled() bool {
	return n.Slot1ParticipantID != nil && n.Slot2ParticipantID != nil
}
