package brackets

import (
	"context"
	"math/bits"

	"github.com/Dosada05/bracket-engine/models"
)

// SingleElimination builds a knockout tree. Nodes live in a heap-shaped
// arena: the final is position 1, children of p are 2p and 2p+1, round-1
// nodes occupy size/2..size-1. Byes go to the highest seeds through the
// standard pairing table (seed k meets seed size+1-k in round 1), so a bye
// always lands in slot 2 opposite a real top seed.
type SingleElimination struct{}

func NewSingleElimination() BracketFormat {
	return &SingleElimination{}
}

func (g *SingleElimination) Name() string { return FormatSingleElimination }

func (g *SingleElimination) Build(ctx context.Context, params BuildParams) (*Blueprint, error) {
	seeds := params.Seeds
	n := len(seeds)

	if err := params.checkSize(); err != nil {
		return nil, err
	}

	rounds := bits.Len(uint(n - 1)) // ceil(log2(n))
	size := 1 << rounds

	bp := &Blueprint{
		Format:      FormatSingleElimination,
		Size:        size,
		TotalRounds: rounds,
		Nodes:       make([]models.BracketNode, 0, size),
	}

	// slotDead[pos][slot] marks a slot no participant can ever reach:
	// a round-1 vacancy, or a child subtree that settled empty.
	slotDead := make(map[int][2]bool, size)

	for pos := 1; pos < size; pos++ {
		depth := bits.Len(uint(pos)) - 1
		node := models.BracketNode{
			Position:     pos,
			Round:        rounds - depth,
			OrderInRound: pos - (1 << depth) + 1,
		}
		if pos > 1 {
			node.ParentPos = pos / 2
			node.ParentSlot = 1 + pos%2
		}
		if node.Round > 1 {
			node.Child1Pos = 2 * pos
			node.Child2Pos = 2*pos + 1
		}
		bp.Nodes = append(bp.Nodes, node)
	}

	// Seat round 1 from the pairing table. Seed numbers above n are byes.
	order := seedOrder(size)
	for i := 0; i < size/2; i++ {
		node := bp.NodeAt(size/2 + i)
		dead := [2]bool{}
		s1, s2 := order[2*i], order[2*i+1]
		if s1 <= n {
			p := seeds[s1-1]
			node.Slot1ParticipantID, node.Slot1Name = &p.ID, &p.DisplayName
		} else {
			dead[0] = true
		}
		if s2 <= n {
			p := seeds[s2-1]
			node.Slot2ParticipantID, node.Slot2Name = &p.ID, &p.DisplayName
		} else {
			dead[1] = true
		}
		slotDead[node.Position] = dead
	}

	// Settle byes bottom-up. Descending position order guarantees both
	// children are classified before their parent, so a chain of byes
	// cascades as far as it needs to.
	for pos := size - 1; pos >= 1; pos-- {
		node := bp.NodeAt(pos)
		dead := slotDead[pos]

		occupied1 := node.Slot1ParticipantID != nil
		occupied2 := node.Slot2ParticipantID != nil

		switch {
		case occupied1 && occupied2:
			// Real pairing, decided by a match.
		case occupied1 && dead[1]:
			resolveBye(bp, node, *node.Slot1ParticipantID, *node.Slot1Name)
		case occupied2 && dead[0]:
			resolveBye(bp, node, *node.Slot2ParticipantID, *node.Slot2Name)
		case dead[0] && dead[1]:
			// Empty subtree: the parent slot can never be filled either.
			markParentDead(slotDead, node)
		default:
			// At least one live feeder still pending; nothing to settle.
		}
	}

	if params.Tournament != nil && params.Tournament.ThirdPlaceMatch && rounds >= 2 {
		bp.Nodes = append(bp.Nodes, models.BracketNode{
			Position:     size, // one past the heap, outside parent/child wiring
			Round:        rounds,
			OrderInRound: 2,
			IsBronze:     true,
		})
	}

	// Matches exist only for nodes with two real occupants right now;
	// later rounds wait for their feeders.
	for i := range bp.Nodes {
		node := &bp.Nodes[i]
		if node.IsBye || node.IsBronze || !node.BothSlotsFilled() {
			continue
		}
		bp.InitialMatches = append(bp.InitialMatches, newBlueprintMatch(params.Tournament, node))
	}

	bp.TotalMatches = countDecidableNodes(bp, slotDead)

	return bp, nil
}

func resolveBye(bp *Blueprint, node *models.BracketNode, winnerID int, winnerName string) {
	node.IsBye = true
	node.WinnerParticipantID = &winnerID
	if node.ParentPos == 0 {
		return
	}
	parent := bp.NodeAt(node.ParentPos)
	id, name := winnerID, winnerName
	if node.ParentSlot == 1 {
		parent.Slot1ParticipantID, parent.Slot1Name = &id, &name
	} else {
		parent.Slot2ParticipantID, parent.Slot2Name = &id, &name
	}
}

func markParentDead(slotDead map[int][2]bool, node *models.BracketNode) {
	if node.ParentPos == 0 {
		return
	}
	dead := slotDead[node.ParentPos]
	dead[node.ParentSlot-1] = true
	slotDead[node.ParentPos] = dead
}

func countDecidableNodes(bp *Blueprint, slotDead map[int][2]bool) int {
	count := 0
	for i := range bp.Nodes {
		node := &bp.Nodes[i]
		if node.IsBye {
			continue
		}
		dead := slotDead[node.Position]
		if dead[0] && dead[1] {
			continue
		}
		count++
	}
	return count
}

func newBlueprintMatch(t *models.Tournament, node *models.BracketNode) models.Match {
	m := models.Match{
		NodePos:         node.Position,
		Round:           node.Round,
		P1ParticipantID: node.Slot1ParticipantID,
		P2ParticipantID: node.Slot2ParticipantID,
		Status:          models.MatchScheduled,
	}
	if t != nil {
		m.TournamentID = t.ID
		m.ScheduledAt = t.StartDate
	}
	return m
}

// seedOrder returns round-1 seed numbers in bracket position order, built by
// the usual doubling expansion: [1 2] -> [1 4 2 3] -> [1 8 4 5 2 7 3 6].
// Consecutive pairs are the round-1 pairings, top seed first.
func seedOrder(size int) []int {
	order := []int{1, 2}
	for len(order) < size {
		comp := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, comp-s)
		}
		order = next
	}
	return order
}
