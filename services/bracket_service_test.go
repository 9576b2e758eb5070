package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/seeding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockFixture struct {
	svc          BracketService
	tournaments  *fakeTournamentRepo
	profiles     *fakeProfileRepo
	participants *fakeParticipantRepo
	brackets     *fakeBracketRepo
	nodes        *fakeNodeRepo
	matches      *fakeMatchRepo
	outbox       *fakeOutboxRepo

	tournamentID int
	startDate    time.Time
}

func newLockFixture(t *testing.T, method models.SeedingMethod) *lockFixture {
	t.Helper()
	ctx := context.Background()

	f := &lockFixture{
		tournaments:  newFakeTournamentRepo(),
		profiles:     newFakeProfileRepo(),
		participants: newFakeParticipantRepo(),
		brackets:     newFakeBracketRepo(),
		nodes:        newFakeNodeRepo(),
		matches:      newFakeMatchRepo(),
		outbox:       newFakeOutboxRepo(),
		startDate:    time.Date(2026, 4, 10, 19, 0, 0, 0, time.UTC),
	}

	profile := &models.GameProfile{
		Name:            "arena",
		Semantics:       models.SemanticsScore,
		MinParticipants: 2,
		CheckInWindow:   15 * time.Minute,
	}
	require.NoError(t, f.profiles.Create(ctx, nil, profile))

	tournament := &models.Tournament{
		Name:            "spring cup",
		GameProfileID:   profile.ID,
		Format:          "single_elimination",
		SeedingMethod:   method,
		Status:          models.TournamentRegistration,
		StartDate:       f.startDate,
		ThirdPlaceMatch: true,
	}
	require.NoError(t, f.tournaments.Create(ctx, nil, tournament))
	f.tournamentID = tournament.ID

	f.svc = NewBracketService(
		fakeTxManager{}, f.tournaments, f.profiles, f.participants,
		f.brackets, f.nodes, f.matches, f.outbox,
		NewDispatcher(testLogger()), &fakeNotifier{}, testLogger(),
	)
	return f
}

func fiveSlots() []models.ParticipantSlot {
	names := []string{"alfa", "bravo", "charlie", "delta", "echo"}
	slots := make([]models.ParticipantSlot, len(names))
	for i, name := range names {
		slots[i] = models.ParticipantSlot{
			ExternalID:   name,
			DisplayName:  name,
			SlotNumber:   i + 1,
			RegisteredAt: time.Now(),
		}
	}
	return slots
}

func TestLockAndBuildFiveParticipants(t *testing.T) {
	f := newLockFixture(t, models.SeedingSlotOrder)
	ctx := context.Background()

	bracket, err := f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), seeding.Options{})
	require.NoError(t, err)

	assert.Equal(t, 8, bracket.Size)
	assert.Equal(t, 3, bracket.TotalRounds)
	assert.Equal(t, 5, bracket.TotalMatches) // 3 byes never play
	assert.True(t, bracket.IsFinalized)
	assert.Len(t, bracket.Nodes, 8) // 7 tree nodes plus bronze

	tournament, err := f.tournaments.GetByID(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentActive, tournament.Status)

	// Seed 1 drew the bye at position 4 and already sits in the semifinal.
	bye, err := f.nodes.GetByPosition(ctx, bracket.ID, 4)
	require.NoError(t, err)
	assert.True(t, bye.IsBye)
	require.NotNil(t, bye.WinnerParticipantID)
	assert.Equal(t, 1, *bye.WinnerParticipantID)

	semi, err := f.nodes.GetByPosition(ctx, bracket.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, semi.Slot1ParticipantID)
	assert.Equal(t, 1, *semi.Slot1ParticipantID)
	assert.Nil(t, semi.Slot2ParticipantID)

	// Two playable pairings exist on day one: 4v5 and the settled
	// semifinal between the bye winners 2 and 3.
	all, err := f.matches.ListByTournament(ctx, f.tournamentID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, m := range all {
		assert.Equal(t, models.MatchScheduled, m.Status)
		assert.Equal(t, f.startDate, m.ScheduledAt)
		require.NotNil(t, m.CheckInOpensAt)
		assert.Equal(t, f.startDate.Add(-15*time.Minute), *m.CheckInOpensAt)
	}

	// Seeds were persisted in rank order.
	p, err := f.participants.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p.Seed)
	assert.Equal(t, 1, *p.Seed)

	topics := f.outbox.topics()
	assert.Contains(t, topics, "match.scheduled")
	assert.Contains(t, topics, "bracket.updated")
}

func TestLockAndBuildRejectsNonRegistration(t *testing.T) {
	f := newLockFixture(t, models.SeedingSlotOrder)
	ctx := context.Background()

	require.NoError(t, f.tournaments.UpdateStatus(ctx, nil, f.tournamentID,
		models.TournamentRegistration, models.TournamentActive))

	_, err := f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), seeding.Options{})
	assert.ErrorIs(t, err, ErrTournamentNotLockable)
}

func TestLockAndBuildTwiceRejected(t *testing.T) {
	f := newLockFixture(t, models.SeedingSlotOrder)
	ctx := context.Background()

	_, err := f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), seeding.Options{})
	require.NoError(t, err)

	_, err = f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), seeding.Options{})
	assert.ErrorIs(t, err, ErrBracketAlreadyBuilt)
}

func TestLockAndBuildManualOrderBySlotNumber(t *testing.T) {
	f := newLockFixture(t, models.SeedingManual)
	ctx := context.Background()

	// The organizer addresses participants by slot number, reversed here.
	opts := seeding.Options{ManualOrder: []int{5, 4, 3, 2, 1}}
	_, err := f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), opts)
	require.NoError(t, err)

	participants, err := f.participants.ListByTournament(ctx, f.tournamentID)
	require.NoError(t, err)
	seedBySlot := map[int]int{}
	for _, p := range participants {
		require.NotNil(t, p.Seed)
		seedBySlot[p.SlotNumber] = *p.Seed
	}
	assert.Equal(t, map[int]int{5: 1, 4: 2, 3: 3, 2: 4, 1: 5}, seedBySlot)
}

func TestLockAndBuildManualOrderUnknownSlot(t *testing.T) {
	f := newLockFixture(t, models.SeedingManual)

	opts := seeding.Options{ManualOrder: []int{1, 2, 3, 4, 9}}
	_, err := f.svc.LockAndBuild(context.Background(), f.tournamentID, fiveSlots(), opts)
	assert.ErrorIs(t, err, seeding.ErrInvalidSeedingInput)
}

func TestGetBracketBackfillsNames(t *testing.T) {
	f := newLockFixture(t, models.SeedingSlotOrder)
	ctx := context.Background()

	built, err := f.svc.LockAndBuild(ctx, f.tournamentID, fiveSlots(), seeding.Options{})
	require.NoError(t, err)

	// Simulate an advancement that stored only the participant id.
	semi, err := f.nodes.GetByPosition(ctx, built.ID, 3)
	require.NoError(t, err)
	f.nodes.mu.Lock()
	f.nodes.nodes[semi.ID].Slot1Name = nil
	f.nodes.mu.Unlock()

	bracket, err := f.svc.GetBracket(ctx, f.tournamentID)
	require.NoError(t, err)

	var got *models.BracketNode
	for i := range bracket.Nodes {
		if bracket.Nodes[i].Position == 3 {
			got = &bracket.Nodes[i]
		}
	}
	require.NotNil(t, got)
	require.NotNil(t, got.Slot1Name)
	assert.Equal(t, "bravo", *got.Slot1Name)
}

func TestGetBracketMissing(t *testing.T) {
	f := newLockFixture(t, models.SeedingSlotOrder)

	_, err := f.svc.GetBracket(context.Background(), f.tournamentID)
	assert.ErrorIs(t, err, ErrNotFound)
}
