package services

import (
	"context"
	"testing"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultFixture struct {
	svc          ResultService
	tournaments  *fakeTournamentRepo
	participants *fakeParticipantRepo
	brackets     *fakeBracketRepo
	nodes        *fakeNodeRepo
	matches      *fakeMatchRepo
	results      *fakeResultRepo
	outbox       *fakeOutboxRepo
	dispatcher   *Dispatcher
	wallet       *fakeWallet
	certificates *fakeCertificates
	notifier     *fakeNotifier

	tournamentID int
	bracket      *models.Bracket
	slotIDs      []int // participant ids, seeded order
}

// newResultFixture builds an active 4-slot tournament whose semifinals are
// done: participant 1 beat 4 and participant 2 beat 3, then 1 beat 2 in the
// final. withBronze adds the third-place node (unplayed).
func newResultFixture(t *testing.T, withBronze bool) *resultFixture {
	t.Helper()
	ctx := context.Background()

	f := &resultFixture{
		tournaments:  newFakeTournamentRepo(),
		participants: newFakeParticipantRepo(),
		brackets:     newFakeBracketRepo(),
		nodes:        newFakeNodeRepo(),
		matches:      newFakeMatchRepo(),
		results:      newFakeResultRepo(),
		outbox:       newFakeOutboxRepo(),
		dispatcher:   NewDispatcher(testLogger()),
		wallet:       &fakeWallet{},
		certificates: &fakeCertificates{},
		notifier:     &fakeNotifier{},
	}

	tournament := &models.Tournament{
		Name:            "finals",
		Format:          "single_elimination",
		Status:          models.TournamentActive,
		ThirdPlaceMatch: withBronze,
	}
	require.NoError(t, f.tournaments.Create(ctx, nil, tournament))
	f.tournamentID = tournament.ID

	slots := []models.ParticipantSlot{
		{TournamentID: f.tournamentID, SlotNumber: 1, DisplayName: "alfa"},
		{TournamentID: f.tournamentID, SlotNumber: 2, DisplayName: "bravo"},
		{TournamentID: f.tournamentID, SlotNumber: 3, DisplayName: "charlie"},
		{TournamentID: f.tournamentID, SlotNumber: 4, DisplayName: "delta"},
	}
	require.NoError(t, f.participants.CreateBatch(ctx, nil, slots))
	for _, s := range slots {
		f.slotIDs = append(f.slotIDs, s.ID)
	}

	f.bracket = &models.Bracket{
		TournamentID: f.tournamentID,
		Format:       "single_elimination",
		Size:         4,
		TotalRounds:  2,
		IsFinalized:  true,
	}
	require.NoError(t, f.brackets.Create(ctx, nil, f.bracket))

	p := func(id int) *int { return &id }
	nodes := []models.BracketNode{
		{BracketID: f.bracket.ID, Position: 1, Round: 2, OrderInRound: 1,
			Slot1ParticipantID: p(1), Slot2ParticipantID: p(2), WinnerParticipantID: p(1)},
		{BracketID: f.bracket.ID, Position: 2, ParentPos: 1, ParentSlot: 1, Round: 1, OrderInRound: 1,
			Slot1ParticipantID: p(1), Slot2ParticipantID: p(4), WinnerParticipantID: p(1)},
		{BracketID: f.bracket.ID, Position: 3, ParentPos: 1, ParentSlot: 2, Round: 1, OrderInRound: 2,
			Slot1ParticipantID: p(2), Slot2ParticipantID: p(3), WinnerParticipantID: p(2)},
	}
	if withBronze {
		nodes = append(nodes, models.BracketNode{
			BracketID: f.bracket.ID, Position: 4, Round: 2, OrderInRound: 2, IsBronze: true,
			Slot1ParticipantID: p(4), Slot2ParticipantID: p(3),
		})
	}
	require.NoError(t, f.nodes.CreateBatch(ctx, nil, nodes))

	f.svc = NewResultService(
		fakeTxManager{}, f.results, f.tournaments, f.brackets, f.nodes,
		f.matches, f.participants, f.outbox, f.dispatcher,
		f.wallet, f.certificates, f.notifier,
		PayoutPolicy{1: 10000, 2: 5000, 3: 2500},
		testLogger(),
	)
	return f
}

func (f *resultFixture) addCompleted(t *testing.T, pos, p1, p2, s1, s2 int, at time.Time) {
	t.Helper()
	winner, loser := p1, p2
	if s2 > s1 {
		winner, loser = p2, p1
	}
	m := &models.Match{
		TournamentID:        f.tournamentID,
		NodePos:             pos,
		P1ParticipantID:     &p1,
		P2ParticipantID:     &p2,
		Score1:              &s1,
		Score2:              &s2,
		WinnerParticipantID: &winner,
		LoserParticipantID:  &loser,
		Status:              models.MatchCompleted,
		ScheduledAt:         at.Add(-time.Hour),
		CompletedAt:         &at,
	}
	require.NoError(t, f.matches.Create(context.Background(), nil, m))
}

func (f *resultFixture) addForfeit(t *testing.T, pos, p1, p2, winner int, at time.Time) {
	t.Helper()
	loser := other(winner, p1, p2)
	m := &models.Match{
		TournamentID:        f.tournamentID,
		NodePos:             pos,
		P1ParticipantID:     &p1,
		P2ParticipantID:     &p2,
		WinnerParticipantID: &winner,
		LoserParticipantID:  &loser,
		Status:              models.MatchForfeit,
		ScheduledAt:         at.Add(-time.Hour),
		CompletedAt:         &at,
	}
	require.NoError(t, f.matches.Create(context.Background(), nil, m))
}

func (f *resultFixture) setBronzeWinner(t *testing.T, winnerID int) {
	t.Helper()
	ctx := context.Background()
	bronze, err := f.nodes.GetByPosition(ctx, f.bracket.ID, 4)
	require.NoError(t, err)
	require.NoError(t, f.nodes.SetWinner(ctx, nil, bronze.ID, winnerID))
}

func TestResolveTournamentBronzeMatchDecidesThird(t *testing.T) {
	f := newResultFixture(t, true)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute))
	f.addCompleted(t, 4, 4, 3, 2, 1, base.Add(2*time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(3*time.Minute))
	f.setBronzeWinner(t, 4)

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WinnerID)
	assert.Equal(t, 2, res.RunnerUpID)
	require.NotNil(t, res.ThirdPlaceID)
	assert.Equal(t, 4, *res.ThirdPlaceID)
	assert.Equal(t, string(models.RuleBronzeMatch), res.DeterminationMethod)
	assert.False(t, res.RequiresReview)

	tournament, err := f.tournaments.GetByID(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Equal(t, models.TournamentCompleted, tournament.Status)
	assert.Contains(t, f.outbox.topics(), "tournament.completed")
}

func TestResolveTournamentNotReadyBeforeFinal(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()

	// Clear the final's winner: the root has not settled yet.
	root, err := f.nodes.GetByPosition(ctx, f.bracket.ID, 1)
	require.NoError(t, err)
	f.nodes.mu.Lock()
	f.nodes.nodes[root.ID].WinnerParticipantID = nil
	f.nodes.mu.Unlock()

	err = f.svc.ResolveTournament(ctx, f.tournamentID)
	assert.ErrorIs(t, err, ErrResultNotReady)
}

func TestResolveTournamentWaitsForPendingBronze(t *testing.T) {
	f := newResultFixture(t, true)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))
	// Bronze slots are filled but the match has no winner yet.

	err := f.svc.ResolveTournament(ctx, f.tournamentID)
	assert.ErrorIs(t, err, ErrResultNotReady)
}

func TestResolveTournamentThirdByScoreDifferential(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)                  // delta finishes at -2
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute)) // charlie finishes at -3
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	require.NotNil(t, res.ThirdPlaceID)
	assert.Equal(t, 4, *res.ThirdPlaceID)
	assert.Equal(t, string(models.RuleScoreDiff), res.DeterminationMethod)
	assert.False(t, res.RequiresReview)

	// The log shows head-to-head was evaluated and passed over first.
	require.GreaterOrEqual(t, len(res.TieBreakLog), 2)
	assert.Equal(t, models.RuleHeadToHead, res.TieBreakLog[0].Rule)
	assert.False(t, res.TieBreakLog[0].Decided)
	assert.Equal(t, models.RuleScoreDiff, res.TieBreakLog[1].Rule)
	assert.True(t, res.TieBreakLog[1].Decided)
}

func TestResolveTournamentThirdBySeed(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	// Identical losing scores, different seeds.
	require.NoError(t, f.participants.SetSeed(ctx, nil, 3, 3))
	require.NoError(t, f.participants.SetSeed(ctx, nil, 4, 4))
	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 1, base.Add(time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	require.NotNil(t, res.ThirdPlaceID)
	assert.Equal(t, 3, *res.ThirdPlaceID)
	assert.Equal(t, string(models.RuleHigherSeed), res.DeterminationMethod)
}

func TestResolveTournamentThirdByEarlierFinish(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	// Identical scores, no seeds: the loser whose run ended earlier ranks higher.
	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 1, base.Add(10*time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(20*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	require.NotNil(t, res.ThirdPlaceID)
	assert.Equal(t, 4, *res.ThirdPlaceID)
	assert.Equal(t, string(models.RuleEarlierFinish), res.DeterminationMethod)
}

func TestResolveTournamentExhaustedCascadeLeavesThirdUnset(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	// Same scores, no seeds, same completion instant: nothing separates them.
	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 1, base)
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Nil(t, res.ThirdPlaceID)
	assert.True(t, res.RequiresReview)
	last := res.TieBreakLog[len(res.TieBreakLog)-1]
	assert.Equal(t, models.RuleUnresolved, last.Rule)
}

func TestResolveTournamentForfeitChainFlagsReview(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	// The champion advanced through a no-show, not play.
	f.addForfeit(t, 2, 1, 4, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	res, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WinnerID)
	assert.True(t, res.RequiresReview)
}

func TestResolveTournamentIsExactlyOnce(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))
	// A redelivered completion event resolves again; the second pass is a no-op.
	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))
	f.dispatcher.Wait()

	count := 0
	for _, topic := range f.outbox.topics() {
		if topic == "tournament.completed" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	// Rewards went out once per placement.
	assert.Len(t, f.wallet.credits, 3)
	assert.Len(t, f.certificates.issued, 3)
	assert.Equal(t, []string{"tournament_completed"}, f.notifier.kinds)
}

func TestResolveTournamentPayoutAmounts(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 0, base.Add(time.Minute))
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(2*time.Minute))

	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))
	f.dispatcher.Wait()

	byParticipant := map[int]int64{}
	for _, c := range f.wallet.credits {
		byParticipant[c.participantID] = c.amountCents
	}
	assert.Equal(t, int64(10000), byParticipant[1])
	assert.Equal(t, int64(5000), byParticipant[2])
	assert.Equal(t, int64(2500), byParticipant[4]) // third by score differential

	for _, c := range f.wallet.credits {
		assert.Equal(t, f.tournamentID, c.key.TournamentID)
		assert.Equal(t, c.participantID, c.key.ParticipantID)
	}
}

func TestOverrideResult(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	f.addCompleted(t, 2, 1, 4, 3, 1, base)
	f.addCompleted(t, 3, 2, 3, 3, 1, base)
	f.addCompleted(t, 1, 1, 2, 3, 2, base.Add(time.Minute))
	require.NoError(t, f.svc.ResolveTournament(ctx, f.tournamentID))

	third := 3
	res, err := f.svc.OverrideResult(ctx, f.tournamentID, 42, 2, 1, &third, "final was replayed offline")
	require.NoError(t, err)
	assert.Equal(t, 2, res.WinnerID)
	assert.Equal(t, 1, res.RunnerUpID)
	assert.Equal(t, 3, *res.ThirdPlaceID)
	assert.False(t, res.RequiresReview)
	assert.Equal(t, 42, *res.OverriddenByID)

	stored, err := f.svc.GetResult(ctx, f.tournamentID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.WinnerID)
	assert.NotNil(t, stored.OverriddenAt)
}

func TestOverrideResultValidation(t *testing.T) {
	f := newResultFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.OverrideResult(ctx, f.tournamentID, 42, 1, 1, nil, "dup")
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = f.svc.OverrideResult(ctx, f.tournamentID, 42, 1, 2, nil, "")
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	// No result written yet.
	_, err = f.svc.OverrideResult(ctx, f.tournamentID, 42, 1, 2, nil, "reason")
	assert.ErrorIs(t, err, ErrNotFound)
}
