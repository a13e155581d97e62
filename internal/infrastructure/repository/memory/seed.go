package memory

import (
	"fmt"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
)

const (
	LeagueIDDemo = "demo-league"
	SeasonIDDemo = "2026"
)

// SeedLeagues returns the forming demo league the dev server starts with.
func SeedLeagues() []league.League {
	return []league.League{
		{ID: LeagueIDDemo, Name: "Demo League", SeasonID: SeasonIDDemo, State: league.StateForming},
	}
}

func SeedTeams() []team.Team {
	names := []struct{ id, name string }{
		{"demo-anka", "Anka SK"},
		{"demo-bogaz", "Bogaz FK"},
		{"demo-liman", "Liman Spor"},
		{"demo-yildiz", "Yildiz United"},
	}
	positions := []string{"GK", "DF", "DF", "DF", "DF", "MF", "MF", "MF", "FW", "FW", "FW", "GK", "DF", "MF", "FW"}

	out := make([]team.Team, 0, len(names))
	for _, n := range names {
		t := team.Team{ID: n.id, LeagueID: LeagueIDDemo, Name: n.name}
		for i, pos := range positions {
			p := team.Player{ID: fmt.Sprintf("%s-p%02d", n.id, i+1), Position: pos, Overall: 60 + (i*7)%25}
			t.Players = append(t.Players, p)
			if i < 11 {
				t.Lineup.Starters = append(t.Lineup.Starters, p.ID)
			} else {
				t.Lineup.Subs = append(t.Lineup.Subs, p.ID)
			}
		}
		t.Lineup.Formation = "4-3-3"
		t.Lineup.Tactics = map[string]any{"pressing": "medium", "tempo": "normal"}
		out = append(out, t)
	}
	return out
}

// NewSeededStore returns a store holding the demo league and its teams.
func NewSeededStore() *Store {
	store := NewStore()
	store.PutLeagues(SeedLeagues()...)
	store.PutTeams(SeedTeams()...)
	return store
}
