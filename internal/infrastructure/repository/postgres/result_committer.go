package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchresult"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

const standingUpsertSuffix = `ON CONFLICT (league_public_id, team_public_id) DO UPDATE SET
    name = EXCLUDED.name,
    played = EXCLUDED.played,
    won = EXCLUDED.won,
    draw = EXCLUDED.draw,
    lost = EXCLUDED.lost,
    goals_for = EXCLUDED.goals_for,
    goals_against = EXCLUDED.goals_against,
    goal_difference = EXCLUDED.goal_difference,
    points = EXCLUDED.points,
    updated_at = EXCLUDED.updated_at`

const standingSeedSuffix = `ON CONFLICT (league_public_id, team_public_id) DO NOTHING`

// ResultCommitter locks the fixture row, flips it to played and rewrites
// both standings rows inside one transaction.
type ResultCommitter struct {
	db *sqlx.DB
}

func NewResultCommitter(db *sqlx.DB) *ResultCommitter {
	return &ResultCommitter{db: db}
}

func (c *ResultCommitter) Commit(ctx context.Context, report matchresult.Report) (matchresult.Outcome, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return matchresult.Outcome{}, fmt.Errorf("begin commit result tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.Select(fixtureColumns...).From("fixtures").
		Where(
			qb.Eq("league_public_id", report.LeagueID),
			qb.Eq("public_id", report.MatchID),
		).
		ForUpdate().
		ToSQL()
	if err != nil {
		return matchresult.Outcome{}, fmt.Errorf("build lock fixture query: %w", err)
	}

	var row fixtureTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return matchresult.Outcome{}, matchresult.ErrFixtureMissing
		}
		return matchresult.Outcome{}, fmt.Errorf("lock fixture match=%s: %w", report.MatchID, err)
	}

	item := mapFixtureRow(row)
	outcome := matchresult.Outcome{PreviousStatus: item.Status}
	if item.Status.IsTerminal() {
		if err := tx.Commit(); err != nil {
			return matchresult.Outcome{}, fmt.Errorf("commit noop result tx: %w", err)
		}
		outcome.Fixture = item
		return outcome, nil
	}

	at := report.ReceivedAt.UTC()
	if err := item.Transition(fixture.StatusPlayed, at); err != nil {
		return matchresult.Outcome{}, err
	}
	score := report.Score
	item.Score = &score
	item.ReplayPath = report.ReplayPath

	homeScore, awayScore := scoreColumns(item.Score)
	query, args, err = qb.Update("fixtures").
		Set("status", string(fixture.StatusPlayed)).
		Set("home_score", homeScore).
		Set("away_score", awayScore).
		Set("replay_path", item.ReplayPath).
		Set("played_at", at).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("id", row.ID)).
		ToSQL()
	if err != nil {
		return matchresult.Outcome{}, fmt.Errorf("build mark played query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return matchresult.Outcome{}, fmt.Errorf("mark fixture played match=%s: %w", report.MatchID, err)
	}

	rows, err := lockStandingRows(ctx, tx, item, at)
	if err != nil {
		return matchresult.Outcome{}, err
	}
	home, away := rows[item.HomeTeamID], rows[item.AwayTeamID]
	leaguestanding.ApplyResult(&home, &away, score)
	home.UpdatedAt = at
	away.UpdatedAt = at

	query, args, err = qb.InsertModels("league_standings", []any{standingModel(home), standingModel(away)}, standingUpsertSuffix)
	if err != nil {
		return matchresult.Outcome{}, fmt.Errorf("build upsert standings query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return matchresult.Outcome{}, fmt.Errorf("upsert standings match=%s: %w", report.MatchID, err)
	}

	if err := tx.Commit(); err != nil {
		return matchresult.Outcome{}, fmt.Errorf("commit result tx: %w", err)
	}

	outcome.Applied = true
	outcome.Fixture = item
	outcome.Home = home
	outcome.Away = away
	return outcome, nil
}

// lockStandingRows returns both rows locked. Zeroed rows named after the
// team are inserted first so a team's first result still serializes on the
// row lock.
func lockStandingRows(ctx context.Context, tx *sqlx.Tx, item fixture.Fixture, at time.Time) (map[string]leaguestanding.Standing, error) {
	teamIDs := []string{item.HomeTeamID, item.AwayTeamID}

	query, args, err := qb.Select("public_id", "name").From("teams").
		Where(qb.InStrings("public_id", teamIDs)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select team names query: %w", err)
	}
	var names []struct {
		PublicID string `db:"public_id"`
		Name     string `db:"name"`
	}
	if err := tx.SelectContext(ctx, &names, query, args...); err != nil {
		return nil, fmt.Errorf("select team names: %w", err)
	}
	nameByID := make(map[string]string, len(names))
	for _, n := range names {
		nameByID[n.PublicID] = n.Name
	}

	query, args, err = seedStandingsQuery(item, nameByID, at)
	if err != nil {
		return nil, fmt.Errorf("build seed standings query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("seed standings league=%s: %w", item.LeagueID, err)
	}

	query, args, err = qb.Select(standingColumns...).From("league_standings").
		Where(
			qb.Eq("league_public_id", item.LeagueID),
			qb.InStrings("team_public_id", teamIDs),
		).
		OrderBy("team_public_id").
		ForUpdate().
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build lock standings query: %w", err)
	}

	var existing []leagueStandingTableModel
	if err := tx.SelectContext(ctx, &existing, query, args...); err != nil {
		return nil, fmt.Errorf("lock standings league=%s: %w", item.LeagueID, err)
	}

	out := make(map[string]leaguestanding.Standing, 2)
	for _, row := range existing {
		out[row.TeamID] = mapStandingRow(row)
	}
	for _, id := range teamIDs {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("standing row missing after seed league=%s team=%s", item.LeagueID, id)
		}
	}
	return out, nil
}

// seedStandingsQuery inserts zeroed rows for both teams and leaves existing
// rows untouched.
func seedStandingsQuery(item fixture.Fixture, names map[string]string, at time.Time) (string, []any, error) {
	models := make([]any, 0, 2)
	for _, id := range []string{item.HomeTeamID, item.AwayTeamID} {
		row := leaguestanding.New(item.LeagueID, id, names[id])
		row.UpdatedAt = at
		models = append(models, standingModel(row))
	}
	return qb.InsertModels("league_standings", models, standingSeedSuffix)
}
