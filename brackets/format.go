package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/bracket-engine/models"
)

var (
	ErrInsufficientParticipants = errors.New("not enough participants to build a bracket")
	ErrFormatNotImplemented     = errors.New("bracket format not implemented")
	ErrUnknownFormat            = errors.New("unknown bracket format")
)

const (
	FormatSingleElimination = "single_elimination"
	FormatDoubleElimination = "double_elimination"
	FormatRoundRobin        = "round_robin"
	FormatSwiss             = "swiss"
)

type BuildParams struct {
	Tournament *models.Tournament
	// Seeds is the ordered output of the seeding provider, index 0 = top seed.
	Seeds []models.ParticipantSlot
	// MinParticipants below which the build is rejected. Zero means 2.
	MinParticipants int
}

// checkSize rejects a build with too few seeds for the profile's minimum.
func (p BuildParams) checkSize() error {
	need := p.MinParticipants
	if need < 2 {
		need = 2
	}
	if len(p.Seeds) < need {
		return fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientParticipants, len(p.Seeds), need)
	}
	return nil
}

// Blueprint is the pure, not-yet-persisted output of a format build. Node
// ids are zero until the bracket service writes everything in one
// transaction.
type Blueprint struct {
	Format       string
	Size         int
	TotalRounds  int
	TotalMatches int
	Nodes        []models.BracketNode
	// InitialMatches covers every node that already has two real
	// occupants after bye settlement; later matches are spawned by the
	// advancement engine. Each entry is linked to its node by NodePos.
	InitialMatches []models.Match
}

// NodeAt returns the blueprint node with the given position, nil if absent.
func (b *Blueprint) NodeAt(pos int) *models.BracketNode {
	for i := range b.Nodes {
		if b.Nodes[i].Position == pos {
			return &b.Nodes[i]
		}
	}
	return nil
}

// BracketFormat is the closed set of tournament formats. Only single
// elimination is fully implemented; the others keep the seam.
type BracketFormat interface {
	Build(ctx context.Context, params BuildParams) (*Blueprint, error)
	Name() string
}

// ForName resolves a format by its wire name.
func ForName(name string) (BracketFormat, error) {
	switch name {
	case FormatSingleElimination:
		return NewSingleElimination(), nil
	case FormatRoundRobin:
		return NewRoundRobin(), nil
	case FormatDoubleElimination, FormatSwiss:
		return stubFormat{name: name}, nil
	}
	return nil, ErrUnknownFormat
}

type stubFormat struct {
	name string
}

func (f stubFormat) Name() string { return f.name }

func (f stubFormat) Build(ctx context.Context, params BuildParams) (*Blueprint, error) {
	return nil, ErrFormatNotImplemented
}
