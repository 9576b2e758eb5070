package models

import "time"

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
	DisputeRejected DisputeStatus = "rejected"
)

type DisputeReason string

const (
	DisputeScoreMismatch DisputeReason = "score_mismatch"
	DisputeFlagged       DisputeReason = "flagged"
)

// Dispute records two disagreeing result submissions (or a participant flag)
// on one match. A match cannot leave the disputed status until its dispute
// reaches a terminal resolution; resolving it is the only path that may
// overwrite scores after initial submission.
type Dispute struct {
	ID          int           `json:"id" db:"id"`
	MatchID     int           `json:"match_id" db:"match_id"`
	RaisedByID  int           `json:"raised_by_id" db:"raised_by_id"`
	Reason      DisputeReason `json:"reason" db:"reason"`
	Description string        `json:"description" db:"description"`
	EvidenceRef *string       `json:"evidence_ref,omitempty" db:"evidence_ref"`

	// The two claimed score pairs, as submitted by each side.
	ClaimedScore1P1 *int `json:"claimed_score1_p1,omitempty" db:"claimed_score1_p1"`
	ClaimedScore1P2 *int `json:"claimed_score1_p2,omitempty" db:"claimed_score1_p2"`
	ClaimedScore2P1 *int `json:"claimed_score2_p1,omitempty" db:"claimed_score2_p1"`
	ClaimedScore2P2 *int `json:"claimed_score2_p2,omitempty" db:"claimed_score2_p2"`

	Status      DisputeStatus `json:"status" db:"status"`
	ResolverID  *int          `json:"resolver_id,omitempty" db:"resolver_id"`
	FinalScore1 *int          `json:"final_score1,omitempty" db:"final_score1"`
	FinalScore2 *int          `json:"final_score2,omitempty" db:"final_score2"`

	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
