package models

import "time"

// TieBreakRule names one step of the placement cascade, in evaluation order.
type TieBreakRule string

const (
	RuleBronzeMatch     TieBreakRule = "bronze_match"
	RuleHeadToHead      TieBreakRule = "head_to_head"
	RuleScoreDiff       TieBreakRule = "score_differential"
	RuleHigherSeed      TieBreakRule = "higher_seed"
	RuleEarlierFinish   TieBreakRule = "earlier_finish"
	RuleUnresolved      TieBreakRule = "unresolved"
)

// TieBreakStep is one entry of the audit log: which rule ran and what it
// decided.
type TieBreakStep struct {
	Rule    TieBreakRule `json:"rule"`
	Outcome string       `json:"outcome"`
	Decided bool         `json:"decided"`
}

// TournamentResult is written exactly once, when the bracket root is
// decided. Immutable afterwards except through the audited override path.
type TournamentResult struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`

	WinnerID     int  `json:"winner_id" db:"winner_id"`
	RunnerUpID   int  `json:"runner_up_id" db:"runner_up_id"`
	ThirdPlaceID *int `json:"third_place_id,omitempty" db:"third_place_id"`

	DeterminationMethod string         `json:"determination_method" db:"determination_method"`
	TieBreakLog         []TieBreakStep `json:"tie_break_log" db:"tie_break_log"`

	// Set when resolution relied on a weak signal: a forfeit chain behind a
	// placement, or an exhausted tie-break cascade.
	RequiresReview bool `json:"requires_review" db:"requires_review"`

	OverriddenByID *int       `json:"overridden_by_id,omitempty" db:"overridden_by_id"`
	OverrideReason *string    `json:"override_reason,omitempty" db:"override_reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	OverriddenAt   *time.Time `json:"overridden_at,omitempty" db:"overridden_at"`
}
