package leaguestanding

import (
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
)

const (
	PointsWin  = 3
	PointsDraw = 1
)

// Standing represents a league table row for one team.
type Standing struct {
	LeagueID       string
	TeamID         string
	Name           string
	Played         int
	Won            int
	Draw           int
	Lost           int
	GoalsFor       int
	GoalsAgainst   int
	GoalDifference int
	Points         int
	UpdatedAt      time.Time
}

// New is the zero row a team starts from before its first result.
func New(leagueID, teamID, name string) Standing {
	return Standing{LeagueID: leagueID, TeamID: teamID, Name: name}
}

// Record counts one finished match from this team's perspective.
func (s *Standing) Record(goalsFor, goalsAgainst int) {
	s.Played++
	s.GoalsFor += goalsFor
	s.GoalsAgainst += goalsAgainst
	switch {
	case goalsFor > goalsAgainst:
		s.Won++
	case goalsFor == goalsAgainst:
		s.Draw++
	default:
		s.Lost++
	}
	s.recompute()
}

func (s *Standing) recompute() {
	s.GoalDifference = s.GoalsFor - s.GoalsAgainst
	s.Points = PointsWin*s.Won + PointsDraw*s.Draw
}

// ApplyResult records score for both sides symmetrically.
func ApplyResult(home, away *Standing, score fixture.Score) {
	home.Record(score.Home, score.Away)
	away.Record(score.Away, score.Home)
}

// Consistent checks the derived columns against the counters.
func (s Standing) Consistent() bool {
	return s.Played == s.Won+s.Draw+s.Lost &&
		s.Points == PointsWin*s.Won+PointsDraw*s.Draw &&
		s.GoalDifference == s.GoalsFor-s.GoalsAgainst
}

// Sort orders a table by points, goal difference, goals for, then name.
func Sort(rows []Standing) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}
