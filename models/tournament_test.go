package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTournamentTransition(t *testing.T) {
	allowed := []struct{ from, to TournamentStatus }{
		{TournamentRegistration, TournamentActive},
		{TournamentRegistration, TournamentCanceled},
		{TournamentActive, TournamentCompleted},
		{TournamentActive, TournamentCanceled},
	}
	for _, tc := range allowed {
		assert.True(t, ValidTournamentTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	denied := []struct{ from, to TournamentStatus }{
		{TournamentRegistration, TournamentCompleted},
		{TournamentActive, TournamentRegistration},
		{TournamentCompleted, TournamentActive},
		{TournamentCanceled, TournamentRegistration},
	}
	for _, tc := range denied {
		assert.False(t, ValidTournamentTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTournamentTerminalStatesAdmitNoTransition(t *testing.T) {
	all := []TournamentStatus{
		TournamentRegistration, TournamentActive, TournamentCompleted, TournamentCanceled,
	}
	for _, from := range []TournamentStatus{TournamentCompleted, TournamentCanceled} {
		for _, to := range all {
			assert.False(t, ValidTournamentTransition(from, to), "%s -> %s", from, to)
		}
	}
}
