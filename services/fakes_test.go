package services

import (
	"context"
	"sync"
	"time"

	"github.com/Dosada05/bracket-engine/models"
	"github.com/Dosada05/bracket-engine/repositories"
)

// In-memory fakes. They reproduce the conditional-write semantics of the
// postgres repositories (version checks, idempotent slot fills, exactly-once
// result creation) so the services can be exercised without a database.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: map[int]*models.Tournament{}, nextID: 1}
}

func (r *fakeTournamentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	cp := *t
	r.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, limit, offset int) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.tournaments {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != from {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = to
	return nil
}

type fakeParticipantRepo struct {
	mu     sync.Mutex
	slots  map[int]*models.ParticipantSlot
	nextID int
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{slots: map[int]*models.ParticipantSlot{}, nextID: 1}
}

func (r *fakeParticipantRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, slots []models.ParticipantSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range slots {
		slots[i].ID = r.nextID
		r.nextID++
		cp := slots[i]
		r.slots[cp.ID] = &cp
	}
	return nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id int) (*models.ParticipantSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeParticipantRepo) ListByTournament(ctx context.Context, tournamentID int) ([]models.ParticipantSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ParticipantSlot
	for _, s := range r.slots {
		if s.TournamentID == tournamentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeParticipantRepo) SetSeed(ctx context.Context, exec repositories.SQLExecutor, id, seed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	rank := seed
	s.Seed = &rank
	return nil
}

type fakeBracketRepo struct {
	mu       sync.Mutex
	brackets map[int]*models.Bracket // by tournament id
	nextID   int
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{brackets: map[int]*models.Bracket{}, nextID: 1}
}

func (r *fakeBracketRepo) Create(ctx context.Context, exec repositories.SQLExecutor, b *models.Bracket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b.ID = r.nextID
	r.nextID++
	b.CreatedAt = time.Now()
	cp := *b
	cp.Nodes = nil
	r.brackets[b.TournamentID] = &cp
	return nil
}

func (r *fakeBracketRepo) GetByTournament(ctx context.Context, tournamentID int) (*models.Bracket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brackets[tournamentID]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBracketRepo) Finalize(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.brackets {
		if b.ID == bracketID {
			b.IsFinalized = true
			return nil
		}
	}
	return repositories.ErrBracketNotFound
}

type fakeNodeRepo struct {
	mu     sync.Mutex
	nodes  map[int]*models.BracketNode
	nextID int
}

func newFakeNodeRepo() *fakeNodeRepo {
	return &fakeNodeRepo{nodes: map[int]*models.BracketNode{}, nextID: 1}
}

func (r *fakeNodeRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, nodes []models.BracketNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range nodes {
		nodes[i].ID = r.nextID
		r.nextID++
		cp := nodes[i]
		r.nodes[cp.ID] = &cp
	}
	return nil
}

func (r *fakeNodeRepo) GetByPosition(ctx context.Context, bracketID, position int) (*models.BracketNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		if n.BracketID == bracketID && n.Position == position {
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNodeNotFound
}

func (r *fakeNodeRepo) ListByBracket(ctx context.Context, bracketID int) ([]models.BracketNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BracketNode
	for _, n := range r.nodes {
		if n.BracketID == bracketID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeNodeRepo) FillSlot(ctx context.Context, exec repositories.SQLExecutor, nodeID, slot int, participantID int, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return repositories.ErrNodeNotFound
	}
	// Conditional: only an empty slot or the same value may be written.
	if slot == 1 {
		if n.Slot1ParticipantID != nil && *n.Slot1ParticipantID != participantID {
			return repositories.ErrNodeNotFound
		}
		n.Slot1ParticipantID = &participantID
		n.Slot1Name = &name
	} else {
		if n.Slot2ParticipantID != nil && *n.Slot2ParticipantID != participantID {
			return repositories.ErrNodeNotFound
		}
		n.Slot2ParticipantID = &participantID
		n.Slot2Name = &name
	}
	return nil
}

func (r *fakeNodeRepo) SetWinner(ctx context.Context, exec repositories.SQLExecutor, nodeID, participantID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return repositories.ErrNodeNotFound
	}
	if n.WinnerParticipantID != nil && *n.WinnerParticipantID != participantID {
		return repositories.ErrNodeNotFound
	}
	n.WinnerParticipantID = &participantID
	return nil
}

func (r *fakeNodeRepo) LinkMatch(ctx context.Context, exec repositories.SQLExecutor, nodeID, matchID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[nodeID]
	if !ok {
		return repositories.ErrNodeNotFound
	}
	n.MatchID = &matchID
	return nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	matches map[int]*models.Match
	nextID  int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: map[int]*models.Match{}, nextID: 1}
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = r.nextID
	r.nextID++
	m.Version = 1
	m.CreatedAt = time.Now()
	cp := *m
	r.matches[m.ID] = &cp
	return nil
}

func (r *fakeMatchRepo) CreateForNode(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) (bool, error) {
	r.mu.Lock()
	for _, existing := range r.matches {
		if existing.TournamentID == m.TournamentID && existing.NodePos == m.NodePos {
			r.mu.Unlock()
			return false, nil
		}
	}
	r.mu.Unlock()
	return true, r.Create(ctx, exec, m)
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) GetByNode(ctx context.Context, tournamentID, nodePos int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.TournamentID == tournamentID && m.NodePos == nodePos {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Match
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *fakeMatchRepo) ListDueForCheckIn(ctx context.Context, now time.Time) ([]models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Match
	for _, m := range r.matches {
		if m.Status == models.MatchScheduled && m.CheckInOpensAt != nil && !m.CheckInOpensAt.After(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListWithExpiredCheckIn(ctx context.Context, now time.Time) ([]models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Match
	for _, m := range r.matches {
		if m.Status == models.MatchCheckIn && !m.ScheduledAt.After(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListDueToStart(ctx context.Context, now time.Time) ([]models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Match
	for _, m := range r.matches {
		if m.Status == models.MatchReady && !m.ScheduledAt.After(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) Update(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.matches[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if stored.Version != expectedVersion {
		return repositories.ErrMatchVersionConflict
	}
	cp := *m
	cp.Version = expectedVersion + 1
	r.matches[m.ID] = &cp
	m.Version = cp.Version
	return nil
}

type fakeDisputeRepo struct {
	mu       sync.Mutex
	disputes map[int]*models.Dispute
	nextID   int
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: map[int]*models.Dispute{}, nextID: 1}
}

func (r *fakeDisputeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, d *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.nextID
	r.nextID++
	d.CreatedAt = time.Now()
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repositories.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDisputeRepo) GetOpenByMatch(ctx context.Context, matchID int) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.MatchID == matchID && d.Status == models.DisputeOpen {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repositories.ErrDisputeNotFound
}

func (r *fakeDisputeRepo) Resolve(ctx context.Context, exec repositories.SQLExecutor, id int, status models.DisputeStatus, resolverID int, finalScore1, finalScore2 *int, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok || d.Status != models.DisputeOpen {
		return repositories.ErrDisputeNotFound
	}
	d.Status = status
	d.ResolverID = &resolverID
	d.FinalScore1 = finalScore1
	d.FinalScore2 = finalScore2
	d.ResolvedAt = &resolvedAt
	return nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[int]*models.TournamentResult // by tournament id
	nextID  int
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: map[int]*models.TournamentResult{}, nextID: 1}
}

func (r *fakeResultRepo) Create(ctx context.Context, exec repositories.SQLExecutor, res *models.TournamentResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.results[res.TournamentID]; exists {
		return repositories.ErrResultAlreadyExists
	}
	res.ID = r.nextID
	r.nextID++
	res.CreatedAt = time.Now()
	cp := *res
	r.results[res.TournamentID] = &cp
	return nil
}

func (r *fakeResultRepo) GetByTournament(ctx context.Context, tournamentID int) (*models.TournamentResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[tournamentID]
	if !ok {
		return nil, repositories.ErrResultNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeResultRepo) Override(ctx context.Context, exec repositories.SQLExecutor, res *models.TournamentResult, overriddenBy int, reason string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.results[res.TournamentID]
	if !ok {
		return repositories.ErrResultNotFound
	}
	stored.WinnerID = res.WinnerID
	stored.RunnerUpID = res.RunnerUpID
	stored.ThirdPlaceID = res.ThirdPlaceID
	stored.RequiresReview = false
	stored.OverriddenByID = &overriddenBy
	stored.OverrideReason = &reason
	stored.OverriddenAt = &at
	return nil
}

type fakeOutboxRepo struct {
	mu     sync.Mutex
	events []models.OutboxEvent
	nextID int
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{nextID: 1}
}

func (r *fakeOutboxRepo) Append(ctx context.Context, exec repositories.SQLExecutor, ev *models.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = r.nextID
	r.nextID++
	r.events = append(r.events, *ev)
	return nil
}

func (r *fakeOutboxRepo) ListUnpublished(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OutboxEvent
	for _, ev := range r.events {
		if ev.PublishedAt == nil {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeOutboxRepo) MarkPublished(ctx context.Context, ids []int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	marked := make(map[int]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range r.events {
		if marked[r.events[i].ID] {
			t := at
			r.events[i].PublishedAt = &t
		}
	}
	return nil
}

// topics returns the topics of every appended event, in order.
func (r *fakeOutboxRepo) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Topic
	}
	return out
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[int]*models.GameProfile
	nextID   int
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[int]*models.GameProfile{}, nextID: 1}
}

func (r *fakeProfileRepo) GetByID(ctx context.Context, id int) (*models.GameProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, repositories.ErrGameProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeProfileRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.GameProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.nextID
	r.nextID++
	cp := *p
	r.profiles[p.ID] = &cp
	return nil
}

type recordedCredit struct {
	key           IdempotencyKey
	participantID int
	amountCents   int64
}

type fakeWallet struct {
	mu      sync.Mutex
	credits []recordedCredit
}

func (w *fakeWallet) Credit(ctx context.Context, key IdempotencyKey, participantID int, amountCents int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credits = append(w.credits, recordedCredit{key: key, participantID: participantID, amountCents: amountCents})
	return nil
}

type fakeCertificates struct {
	mu     sync.Mutex
	issued []string
}

func (c *fakeCertificates) Issue(ctx context.Context, tournamentID, participantID, placement int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref := IdempotencyKey{TournamentID: tournamentID, ParticipantID: participantID, Purpose: "certificate"}.String()
	c.issued = append(c.issued, ref)
	return ref, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *fakeNotifier) Notify(ctx context.Context, kind string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}
