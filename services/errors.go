package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in the handlers.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors; rejected synchronously, never
	// partially applied.
	ErrTournamentNotLockable = errors.New("tournament is not open for locking")
	ErrBracketAlreadyBuilt   = errors.New("bracket already built for this tournament")
	ErrBracketNotFinalized   = errors.New("bracket is not finalized")
	ErrInvalidMatchState     = errors.New("operation not allowed in the current match state")
	ErrNotAParticipant       = errors.New("participant is not part of this match")
	ErrDrawNotAllowed        = errors.New("a drawn score cannot decide an elimination match")
	ErrDisputeNotOpen        = errors.New("dispute is not open")
	ErrResultNotReady        = errors.New("tournament result cannot be determined yet")
	ErrForbiddenOperation    = errors.New("operation not allowed for the current user")
)
