package seeding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/Dosada05/bracket-engine/models"
)

var (
	ErrInvalidSeedingInput  = errors.New("invalid seeding input")
	ErrUnknownSeedingMethod = errors.New("unknown seeding method")
)

// RankingProvider is the external ranking collaborator, consulted only by
// the ranked method.
type RankingProvider interface {
	Score(ctx context.Context, participantID int) (float64, error)
}

// Options carries per-method inputs.
type Options struct {
	// Rand drives the random method. Pass a seeded source for
	// deterministic output; nil falls back to a time-seeded one.
	Rand *rand.Rand

	// ManualOrder is the organizer-supplied permutation of participant ids
	// for the manual method. It must be a bijection over the input set.
	ManualOrder []int

	Ranking RankingProvider
}

// Order returns the participants reordered so that index 0 is the top seed.
// The input slice is never mutated.
func Order(ctx context.Context, method models.SeedingMethod, slots []models.ParticipantSlot, opts Options) ([]models.ParticipantSlot, error) {
	seeded := make([]models.ParticipantSlot, len(slots))
	copy(seeded, slots)

	switch method {
	case models.SeedingSlotOrder:
		sort.SliceStable(seeded, func(i, j int) bool {
			return seeded[i].SlotNumber < seeded[j].SlotNumber
		})
		return seeded, nil

	case models.SeedingRandom:
		r := opts.Rand
		if r == nil {
			r = rand.New(rand.NewSource(time.Now().UnixNano()))
		}
		r.Shuffle(len(seeded), func(i, j int) {
			seeded[i], seeded[j] = seeded[j], seeded[i]
		})
		return seeded, nil

	case models.SeedingManual:
		return orderManual(seeded, opts.ManualOrder)

	case models.SeedingRanked:
		if opts.Ranking == nil {
			return nil, fmt.Errorf("%w: ranked seeding requires a ranking provider", ErrInvalidSeedingInput)
		}
		return orderRanked(ctx, seeded, opts.Ranking)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownSeedingMethod, method)
}

func orderManual(slots []models.ParticipantSlot, order []int) ([]models.ParticipantSlot, error) {
	if len(order) != len(slots) {
		return nil, fmt.Errorf("%w: manual order has %d entries for %d participants", ErrInvalidSeedingInput, len(order), len(slots))
	}

	byID := make(map[int]models.ParticipantSlot, len(slots))
	for _, s := range slots {
		byID[s.ID] = s
	}

	seen := make(map[int]bool, len(order))
	result := make([]models.ParticipantSlot, 0, len(order))
	for _, id := range order {
		if seen[id] {
			return nil, fmt.Errorf("%w: participant %d appears twice in manual order", ErrInvalidSeedingInput, id)
		}
		seen[id] = true
		slot, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: participant %d is not registered", ErrInvalidSeedingInput, id)
		}
		result = append(result, slot)
	}
	return result, nil
}

func orderRanked(ctx context.Context, slots []models.ParticipantSlot, ranking RankingProvider) ([]models.ParticipantSlot, error) {
	scores := make(map[int]float64, len(slots))
	for _, s := range slots {
		score, err := ranking.Score(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ranking score for participant %d: %w", s.ID, err)
		}
		scores[s.ID] = score
	}

	// Ties must break deterministically: older registration first, then
	// lowest id. Never map iteration order.
	sort.SliceStable(slots, func(i, j int) bool {
		si, sj := scores[slots[i].ID], scores[slots[j].ID]
		if si != sj {
			return si > sj
		}
		if !slots[i].RegisteredAt.Equal(slots[j].RegisteredAt) {
			return slots[i].RegisteredAt.Before(slots[j].RegisteredAt)
		}
		return slots[i].ID < slots[j].ID
	})
	return slots, nil
}
