package memory

import (
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
)

func planFor(matchID string) matchplan.Plan {
	return matchplan.Plan{
		MatchID:   matchID,
		LeagueID:  LeagueIDDemo,
		SeasonID:  SeasonIDDemo,
		Seed:      7,
		KickoffAt: time.Date(2026, 3, 1, 16, 0, 0, 0, time.UTC),
		Home:      matchplan.Side{TeamID: "demo-anka", Starters: []string{"a"}},
		Away:      matchplan.Side{TeamID: "demo-bogaz", Starters: []string{"b"}},
	}
}
