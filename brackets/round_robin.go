package brackets

import (
	"context"

	"github.com/Dosada05/bracket-engine/models"
)

// RoundRobin schedules every participant against every other participant
// once. There is no tree and no advancement: matches carry NodePos 0 and the
// engine leaves them alone. Standings over a round-robin phase are out of
// scope here.
type RoundRobin struct{}

func NewRoundRobin() BracketFormat {
	return &RoundRobin{}
}

func (g *RoundRobin) Name() string { return FormatRoundRobin }

func (g *RoundRobin) Build(ctx context.Context, params BuildParams) (*Blueprint, error) {
	seeds := params.Seeds
	n := len(seeds)

	if err := params.checkSize(); err != nil {
		return nil, err
	}

	bp := &Blueprint{
		Format:      FormatRoundRobin,
		Size:        n,
		TotalRounds: 1,
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			p1, p2 := seeds[i], seeds[j]
			m := models.Match{
				Round:           1,
				P1ParticipantID: &p1.ID,
				P2ParticipantID: &p2.ID,
				Status:          models.MatchScheduled,
			}
			if params.Tournament != nil {
				m.TournamentID = params.Tournament.ID
				m.ScheduledAt = params.Tournament.StartDate
			}
			bp.InitialMatches = append(bp.InitialMatches, m)
		}
	}
	bp.TotalMatches = len(bp.InitialMatches)

	return bp, nil
}
