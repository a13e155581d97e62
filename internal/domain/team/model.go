package team

import "fmt"

// Team is a club with its live lineup. The lineup keeps changing until the
// lock window copies it into a match plan.
type Team struct {
	ID       string
	LeagueID string
	Name     string
	Lineup   Lineup
	Players  []Player
}

type Lineup struct {
	Formation string
	Tactics   map[string]any
	Starters  []string
	Subs      []string
}

type Player struct {
	ID       string
	Position string
	Overall  int
}

func (t Team) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if t.LeagueID == "" {
		return fmt.Errorf("team league id is required")
	}
	if t.Name == "" {
		return fmt.Errorf("team name is required")
	}

	return nil
}

// PlayerIndex maps player ids to roster entries.
func (t Team) PlayerIndex() map[string]Player {
	out := make(map[string]Player, len(t.Players))
	for _, p := range t.Players {
		out[p.ID] = p
	}
	return out
}
