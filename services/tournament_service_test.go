package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/brackets"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tournamentFixture struct {
	svc         TournamentService
	matchSvc    MatchService
	tournaments *fakeTournamentRepo
	profiles    *fakeProfileRepo
	matches     *fakeMatchRepo

	profileID int
}

func newTournamentFixture(t *testing.T) *tournamentFixture {
	t.Helper()

	f := &tournamentFixture{
		tournaments: newFakeTournamentRepo(),
		profiles:    newFakeProfileRepo(),
		matches:     newFakeMatchRepo(),
	}

	profile := &models.GameProfile{
		Name:            "arena",
		Semantics:       models.SemanticsScore,
		MinParticipants: 2,
	}
	require.NoError(t, f.profiles.Create(context.Background(), nil, profile))
	f.profileID = profile.ID

	f.matchSvc = NewMatchService(
		fakeTxManager{}, f.matches, newFakeDisputeRepo(), f.tournaments, f.profiles,
		newFakeOutboxRepo(), NewDispatcher(testLogger()), nil, testLogger(),
	)
	f.svc = NewTournamentService(
		fakeTxManager{}, f.tournaments, f.profiles, newFakeParticipantRepo(),
		newFakeBracketRepo(), f.matchSvc, testLogger(),
	)
	return f
}

func TestCreateTournamentDefaults(t *testing.T) {
	f := newTournamentFixture(t)

	created, err := f.svc.Create(context.Background(), &models.Tournament{
		Name:          "autumn open",
		GameProfileID: f.profileID,
		Format:        brackets.FormatSingleElimination,
	})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, models.TournamentRegistration, created.Status)
	assert.Equal(t, models.SeedingSlotOrder, created.SeedingMethod)
	assert.False(t, created.StartDate.IsZero())
}

func TestCreateTournamentValidation(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &models.Tournament{
		GameProfileID: f.profileID,
		Format:        brackets.FormatSingleElimination,
	})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = f.svc.Create(ctx, &models.Tournament{
		Name:          "x",
		GameProfileID: f.profileID,
		Format:        "ladder",
	})
	assert.ErrorIs(t, err, brackets.ErrUnknownFormat)

	_, err = f.svc.Create(ctx, &models.Tournament{
		Name:          "x",
		GameProfileID: 99,
		Format:        brackets.FormatSingleElimination,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelTournamentCancelsOpenMatches(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, &models.Tournament{
		Name:          "cup",
		GameProfileID: f.profileID,
		Format:        brackets.FormatSingleElimination,
	})
	require.NoError(t, err)

	p1, p2 := 10, 20
	open := &models.Match{
		TournamentID: created.ID, NodePos: 4, Round: 1,
		P1ParticipantID: &p1, P2ParticipantID: &p2,
		Status: models.MatchScheduled, ScheduledAt: time.Now(),
	}
	require.NoError(t, f.matches.Create(ctx, nil, open))
	now := time.Now()
	done := &models.Match{
		TournamentID: created.ID, NodePos: 5, Round: 1,
		P1ParticipantID: &p1, P2ParticipantID: &p2,
		Status: models.MatchCompleted, ScheduledAt: now, CompletedAt: &now,
	}
	require.NoError(t, f.matches.Create(ctx, nil, done))

	require.NoError(t, f.svc.Cancel(ctx, created.ID))

	got, err := f.tournaments.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCanceled, got.Status)

	canceled, err := f.matches.GetByID(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCanceled, canceled.Status)

	finished, err := f.matches.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchCompleted, finished.Status)

	// A completed tournament cannot be canceled again.
	err = f.svc.Cancel(ctx, created.ID)
	assert.Error(t, err)
}

func TestListClampsLimit(t *testing.T) {
	f := newTournamentFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, &models.Tournament{
			Name:          "t",
			GameProfileID: f.profileID,
			Format:        brackets.FormatRoundRobin,
		})
		require.NoError(t, err)
	}

	out, err := f.svc.List(ctx, -5, 0)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
