package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

var standingColumns = []string{
	"league_public_id", "team_public_id", "name", "played", "won", "draw", "lost",
	"goals_for", "goals_against", "goal_difference", "points", "updated_at",
}

type LeagueStandingRepository struct {
	db *sqlx.DB
}

func NewLeagueStandingRepository(db *sqlx.DB) *LeagueStandingRepository {
	return &LeagueStandingRepository{db: db}
}

func (r *LeagueStandingRepository) ListByLeague(ctx context.Context, leagueID string) ([]leaguestanding.Standing, error) {
	query, args, err := qb.Select(standingColumns...).From("league_standings").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("points DESC", "goal_difference DESC", "goals_for DESC", "LOWER(name) ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select league standings query: %w", err)
	}

	var rows []leagueStandingTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select league standings: %w", err)
	}

	out := make([]leaguestanding.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapStandingRow(row))
	}
	return out, nil
}

func mapStandingRow(row leagueStandingTableModel) leaguestanding.Standing {
	return leaguestanding.Standing{
		LeagueID:       row.LeagueID,
		TeamID:         row.TeamID,
		Name:           row.Name,
		Played:         row.Played,
		Won:            row.Won,
		Draw:           row.Draw,
		Lost:           row.Lost,
		GoalsFor:       row.GoalsFor,
		GoalsAgainst:   row.GoalsAgainst,
		GoalDifference: row.GoalDifference,
		Points:         row.Points,
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func standingModel(s leaguestanding.Standing) leagueStandingTableModel {
	return leagueStandingTableModel{
		LeagueID:       s.LeagueID,
		TeamID:         s.TeamID,
		Name:           s.Name,
		Played:         s.Played,
		Won:            s.Won,
		Draw:           s.Draw,
		Lost:           s.Lost,
		GoalsFor:       s.GoalsFor,
		GoalsAgainst:   s.GoalsAgainst,
		GoalDifference: s.GoalDifference,
		Points:         s.Points,
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
}
