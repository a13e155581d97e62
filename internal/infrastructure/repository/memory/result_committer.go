package memory

import (
	"context"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchresult"
)

// ResultCommitter applies a result under the store's write lock, which
// plays the role of the row lock in the SQL committer.
type ResultCommitter struct {
	store *Store
}

func NewResultCommitter(store *Store) *ResultCommitter {
	return &ResultCommitter{store: store}
}

func (c *ResultCommitter) Commit(_ context.Context, report matchresult.Report) (matchresult.Outcome, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	key := fixtureKey(report.LeagueID, report.MatchID)
	item, ok := c.store.fixtures[key]
	if !ok {
		return matchresult.Outcome{}, matchresult.ErrFixtureMissing
	}
	outcome := matchresult.Outcome{PreviousStatus: item.Status}
	if item.Status.IsTerminal() {
		outcome.Fixture = cloneFixture(item)
		return outcome, nil
	}

	if err := item.Transition(fixture.StatusPlayed, report.ReceivedAt.UTC()); err != nil {
		return matchresult.Outcome{}, err
	}
	score := report.Score
	item.Score = &score
	item.ReplayPath = report.ReplayPath

	home := c.standingRow(item.LeagueID, item.HomeTeamID)
	away := c.standingRow(item.LeagueID, item.AwayTeamID)
	leaguestanding.ApplyResult(&home, &away, score)
	home.UpdatedAt = report.ReceivedAt.UTC()
	away.UpdatedAt = report.ReceivedAt.UTC()

	c.store.fixtures[key] = item
	c.store.standings[standingKey(home.LeagueID, home.TeamID)] = home
	c.store.standings[standingKey(away.LeagueID, away.TeamID)] = away

	outcome.Applied = true
	outcome.Fixture = cloneFixture(item)
	outcome.Home = home
	outcome.Away = away
	return outcome, nil
}

func (c *ResultCommitter) standingRow(leagueID, teamID string) leaguestanding.Standing {
	if row, ok := c.store.standings[standingKey(leagueID, teamID)]; ok {
		return row
	}
	name := ""
	if t, ok := c.store.teams[teamID]; ok {
		name = t.Name
	}
	return leaguestanding.New(leagueID, teamID, name)
}
