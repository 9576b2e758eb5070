package services

import (
	"context"
	"fmt"
)

// The engine never owns registration, money movement, notifications or
// documents; those live behind these contracts. Every call that moves value
// carries an idempotency key so at-least-once dispatch cannot double-apply.

// IdempotencyKey identifies one side effect of one tournament outcome.
type IdempotencyKey struct {
	TournamentID  int
	ParticipantID int
	Purpose       string
}

func (k IdempotencyKey) String() string {
	return fmt.Sprintf("t%d:p%d:%s", k.TournamentID, k.ParticipantID, k.Purpose)
}

// WalletService is the ledger collaborator used for prize payout.
type WalletService interface {
	Credit(ctx context.Context, key IdempotencyKey, participantID int, amountCents int64) error
}

// Notifier receives fire-and-forget notifications. Failures are logged and
// retried by the dispatcher, never propagated into a state transition.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload interface{}) error
}

// CertificateService renders one placement document and returns an opaque
// reference to it.
type CertificateService interface {
	Issue(ctx context.Context, tournamentID, participantID, placement int) (string, error)
}
