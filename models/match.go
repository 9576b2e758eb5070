package models

import "time"

type MatchStatus string

const (
	MatchScheduled     MatchStatus = "scheduled"
	MatchCheckIn       MatchStatus = "check_in"
	MatchReady         MatchStatus = "ready"
	MatchLive          MatchStatus = "live"
	MatchPendingResult MatchStatus = "pending_result"
	MatchDisputed      MatchStatus = "disputed"
	MatchCompleted     MatchStatus = "completed"
	MatchForfeit       MatchStatus = "forfeit"
	MatchCanceled      MatchStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchForfeit || s == MatchCanceled
}

// matchTransitions is the closed transition table of the lifecycle.
// Forfeit and cancellation are handled separately: they are reachable from
// any non-terminal state.
var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchScheduled:     {MatchCheckIn, MatchLive},
	MatchCheckIn:       {MatchReady},
	MatchReady:         {MatchLive},
	MatchLive:          {MatchPendingResult},
	MatchPendingResult: {MatchCompleted, MatchDisputed},
	MatchDisputed:      {MatchCompleted},
}

// ValidMatchTransition reports whether status may move from current to next.
func ValidMatchTransition(current, next MatchStatus) bool {
	if next == MatchForfeit || next == MatchCanceled {
		return !current.Terminal()
	}
	for _, s := range matchTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// Match is the unit of play owned by exactly one bracket node. Version is an
// optimistic concurrency counter: every state-changing update is conditional
// on the version read and bumps it, so two racing submissions cannot both
// apply.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	NodePos      int         `json:"node_pos" db:"node_pos"`
	Round        int         `json:"round" db:"round"`

	P1ParticipantID *int `json:"p1_participant_id,omitempty" db:"p1_participant_id"`
	P2ParticipantID *int `json:"p2_participant_id,omitempty" db:"p2_participant_id"`

	Score1 *int `json:"score1,omitempty" db:"score1"`
	Score2 *int `json:"score2,omitempty" db:"score2"`

	// First submission held until the opponent confirms or disagrees.
	PendingScore1      *int `json:"pending_score1,omitempty" db:"pending_score1"`
	PendingScore2      *int `json:"pending_score2,omitempty" db:"pending_score2"`
	PendingSubmitterID *int `json:"pending_submitter_id,omitempty" db:"pending_submitter_id"`

	Status  MatchStatus `json:"status" db:"status"`
	Version int         `json:"version" db:"version"`

	P1CheckedIn bool `json:"p1_checked_in" db:"p1_checked_in"`
	P2CheckedIn bool `json:"p2_checked_in" db:"p2_checked_in"`

	WinnerParticipantID *int `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	LoserParticipantID  *int `json:"loser_participant_id,omitempty" db:"loser_participant_id"`

	// Opaque lobby details (map, server, credentials). The core never
	// inspects the contents.
	LobbyInfo map[string]string `json:"lobby_info,omitempty" db:"lobby_info"`

	ScheduledAt    time.Time  `json:"scheduled_at" db:"scheduled_at"`
	CheckInOpensAt *time.Time `json:"check_in_opens_at,omitempty" db:"check_in_opens_at"`
	StartedAt      *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// SideOf returns 1 or 2 for the given participant, 0 if they are not in
// this match.
func (m *Match) SideOf(participantID int) int {
	if m.P1ParticipantID != nil && *m.P1ParticipantID == participantID {
		return 1
	}
	if m.P2ParticipantID != nil && *m.P2ParticipantID == participantID {
		return 2
	}
	return 0
}
