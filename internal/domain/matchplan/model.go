package matchplan

import (
	"errors"
	"fmt"
	"time"
)

var ErrAlreadyExists = errors.New("match plan already exists")

// Plan is the lineup snapshot frozen at lock time. It is created once per
// match and never updated; later lineup edits do not reach it.
type Plan struct {
	MatchID   string
	LeagueID  string
	SeasonID  string
	Seed      int64
	KickoffAt time.Time
	CreatedAt time.Time
	Home      Side
	Away      Side
}

type Side struct {
	TeamID    string         `json:"teamId"`
	Name      string         `json:"name"`
	Formation string         `json:"formation"`
	Tactics   map[string]any `json:"tactics,omitempty"`
	Starters  []string       `json:"starters"`
	Subs      []string       `json:"subs"`
}

func (p Plan) Validate() error {
	if p.MatchID == "" || p.LeagueID == "" {
		return fmt.Errorf("plan match and league ids are required")
	}
	if p.Home.TeamID == "" || p.Away.TeamID == "" {
		return fmt.Errorf("plan sides are required")
	}
	if p.KickoffAt.IsZero() {
		return fmt.Errorf("plan kickoff is required")
	}
	return nil
}
