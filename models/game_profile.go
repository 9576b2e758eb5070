package models

import "time"

// ResultSemantics defines how two submitted scores decide a winner.
type ResultSemantics string

const (
	SemanticsScore     ResultSemantics = "score"     // higher score wins
	SemanticsPlacement ResultSemantics = "placement" // lower placement wins
	SemanticsWinLoss   ResultSemantics = "win_loss"  // 1 beats 0
)

// GameProfile is static per-game configuration.
type GameProfile struct {
	ID                  int             `json:"id" db:"id"`
	Name                string          `json:"name" db:"name"`
	MinTeamSize         int             `json:"min_team_size" db:"min_team_size"`
	MaxTeamSize         int             `json:"max_team_size" db:"max_team_size"`
	Semantics           ResultSemantics `json:"semantics" db:"semantics"`
	SubstitutesPerMatch int             `json:"substitutes_per_match" db:"substitutes_per_match"`
	MinParticipants     int             `json:"min_participants" db:"min_participants"`
	CheckInWindow       time.Duration   `json:"check_in_window" db:"check_in_window"`
}

// DecideWinner returns 1 or 2 for the winning side, 0 for a draw.
func (p *GameProfile) DecideWinner(score1, score2 int) int {
	if score1 == score2 {
		return 0
	}
	switch p.Semantics {
	case SemanticsPlacement:
		if score1 < score2 {
			return 1
		}
		return 2
	default: // score and win_loss both favor the higher number
		if score1 > score2 {
			return 1
		}
		return 2
	}
}
