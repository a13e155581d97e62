package memory

import (
	"sync"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/failedjob"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
)

// Store is the shared in-memory database behind every memory repository.
// One mutex guards all tables so the result committer can update a
// fixture and two standings rows as a single unit.
type Store struct {
	mu         sync.RWMutex
	leagues    map[string]league.League
	teams      map[string]team.Team
	fixtures   map[string]fixture.Fixture
	plans      map[string]matchplan.Plan
	standings  map[string]leaguestanding.Standing
	failedJobs map[string]failedjob.Record
	heartbeats map[string]heartbeat.Heartbeat
	dispatches map[string]jobscheduler.DispatchEvent
}

func NewStore() *Store {
	return &Store{
		leagues:    make(map[string]league.League),
		teams:      make(map[string]team.Team),
		fixtures:   make(map[string]fixture.Fixture),
		plans:      make(map[string]matchplan.Plan),
		standings:  make(map[string]leaguestanding.Standing),
		failedJobs: make(map[string]failedjob.Record),
		heartbeats: make(map[string]heartbeat.Heartbeat),
		dispatches: make(map[string]jobscheduler.DispatchEvent),
	}
}

func (s *Store) PutLeagues(items ...league.League) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.leagues[item.ID] = item
	}
}

func (s *Store) PutTeams(items ...team.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.teams[item.ID] = cloneTeam(item)
	}
}

func (s *Store) PutFixtures(items ...fixture.Fixture) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.fixtures[fixtureKey(item.LeagueID, item.ID)] = cloneFixture(item)
	}
}

func (s *Store) PutStandings(items ...leaguestanding.Standing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.standings[standingKey(item.LeagueID, item.TeamID)] = item
	}
}

func fixtureKey(leagueID, matchID string) string {
	return leagueID + "/" + matchID
}

func standingKey(leagueID, teamID string) string {
	return leagueID + "/" + teamID
}

func cloneFixture(item fixture.Fixture) fixture.Fixture {
	if item.Seed != nil {
		seed := *item.Seed
		item.Seed = &seed
	}
	if item.Score != nil {
		score := *item.Score
		item.Score = &score
	}
	item.StartedAt = cloneTime(item.StartedAt)
	item.PlayedAt = cloneTime(item.PlayedAt)
	item.FailedAt = cloneTime(item.FailedAt)
	return item
}

func cloneTeam(item team.Team) team.Team {
	tactics := make(map[string]any, len(item.Lineup.Tactics))
	for k, v := range item.Lineup.Tactics {
		tactics[k] = v
	}
	item.Lineup.Tactics = tactics
	item.Lineup.Starters = append([]string(nil), item.Lineup.Starters...)
	item.Lineup.Subs = append([]string(nil), item.Lineup.Subs...)
	item.Players = append([]team.Player(nil), item.Players...)
	return item
}

func clonePlan(item matchplan.Plan) matchplan.Plan {
	item.Home = cloneSide(item.Home)
	item.Away = cloneSide(item.Away)
	return item
}

func cloneSide(side matchplan.Side) matchplan.Side {
	tactics := make(map[string]any, len(side.Tactics))
	for k, v := range side.Tactics {
		tactics[k] = v
	}
	side.Tactics = tactics
	side.Starters = append([]string(nil), side.Starters...)
	side.Subs = append([]string(nil), side.Subs...)
	return side
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
