package models

import "time"

// TournamentStatus mirrors the ENUM in the database.
type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "registration"
	TournamentActive       TournamentStatus = "active"
	TournamentCompleted    TournamentStatus = "completed"
	TournamentCanceled     TournamentStatus = "canceled"
)

type SeedingMethod string

const (
	SeedingSlotOrder SeedingMethod = "slot-order"
	SeedingRandom    SeedingMethod = "random"
	SeedingManual    SeedingMethod = "manual"
	SeedingRanked    SeedingMethod = "ranked"
)

type Tournament struct {
	ID               int              `json:"id" db:"id"`
	Name             string           `json:"name" db:"name"`
	OrganizerID      int              `json:"organizer_id" db:"organizer_id"`
	GameProfileID    int              `json:"game_profile_id" db:"game_profile_id"`
	Format           string           `json:"format" db:"format"`
	SeedingMethod    SeedingMethod    `json:"seeding_method" db:"seeding_method"`
	Status           TournamentStatus `json:"status" db:"status"`
	StartDate        time.Time        `json:"start_date" db:"start_date"`
	ThirdPlaceMatch  bool             `json:"third_place_match" db:"third_place_match"`
	CreatedAt        time.Time        `json:"created_at" db:"created_at"`

	// Optional linked data, populated by services.
	GameProfile  *GameProfile      `json:"game_profile,omitempty" db:"-"`
	Participants []ParticipantSlot `json:"participants,omitempty" db:"-"`
	Bracket      *Bracket          `json:"bracket,omitempty" db:"-"`
}

// ValidTournamentTransition reports whether a status change is allowed.
func ValidTournamentTransition(current, next TournamentStatus) bool {
	allowed := map[TournamentStatus][]TournamentStatus{
		TournamentRegistration: {TournamentActive, TournamentCanceled},
		TournamentActive:       {TournamentCompleted, TournamentCanceled},
		TournamentCompleted:    {},
		TournamentCanceled:     {},
	}
	for _, s := range allowed[current] {
		if s == next {
			return true
		}
	}
	return false
}
