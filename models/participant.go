package models

import "time"

// ParticipantSlot is a confirmed tournament entry supplied by the external
// registration collaborator at lock time. The core treats it as immutable
// once the bracket is built.
type ParticipantSlot struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	ExternalID   string    `json:"external_id" db:"external_id"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	SlotNumber   int       `json:"slot_number" db:"slot_number"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}
