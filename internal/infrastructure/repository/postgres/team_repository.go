package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

var teamColumns = []string{"id", "public_id", "league_public_id", "name", "formation", "tactics", "starters", "subs"}

type TeamRepository struct {
	db *sqlx.DB
}

func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

func (r *TeamRepository) ListByLeague(ctx context.Context, leagueID string) ([]team.Team, error) {
	query, args, err := qb.Select(teamColumns...).From("teams").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by league query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams by league: %w", err)
	}

	teams, err := r.attachPlayers(ctx, rows)
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *TeamRepository) GetByIDs(ctx context.Context, teamIDs ...string) (map[string]team.Team, error) {
	out := make(map[string]team.Team, len(teamIDs))
	if len(teamIDs) == 0 {
		return out, nil
	}

	query, args, err := qb.Select(teamColumns...).From("teams").
		Where(qb.InStrings("public_id", teamIDs)).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select teams by ids query: %w", err)
	}

	var rows []teamTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select teams by ids: %w", err)
	}

	teams, err := r.attachPlayers(ctx, rows)
	if err != nil {
		return nil, err
	}
	for _, item := range teams {
		out[item.ID] = item
	}
	return out, nil
}

// UpdateLineup replaces a team's live lineup. Plans already frozen keep
// their copy.
func (r *TeamRepository) UpdateLineup(ctx context.Context, teamID string, lineup team.Lineup) (bool, error) {
	tactics, err := marshalJSON(lineup.Tactics, "{}")
	if err != nil {
		return false, fmt.Errorf("marshal tactics: %w", err)
	}
	starters, err := marshalJSON(lineup.Starters, "[]")
	if err != nil {
		return false, fmt.Errorf("marshal starters: %w", err)
	}
	subs, err := marshalJSON(lineup.Subs, "[]")
	if err != nil {
		return false, fmt.Errorf("marshal subs: %w", err)
	}

	query, args, err := qb.Update("teams").
		Set("formation", lineup.Formation).
		SetExpr("tactics", "?::jsonb", tactics).
		SetExpr("starters", "?::jsonb", starters).
		SetExpr("subs", "?::jsonb", subs).
		SetExpr("updated_at", "NOW()").
		Where(qb.Eq("public_id", teamID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update lineup query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update lineup team=%s: %w", teamID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read lineup rows affected: %w", err)
	}
	return affected > 0, nil
}

// Upsert writes a team with its roster in one transaction.
func (r *TeamRepository) Upsert(ctx context.Context, item team.Team) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid team: %w", err)
	}
	tactics, err := marshalJSON(item.Lineup.Tactics, "{}")
	if err != nil {
		return fmt.Errorf("marshal tactics: %w", err)
	}
	starters, err := marshalJSON(item.Lineup.Starters, "[]")
	if err != nil {
		return fmt.Errorf("marshal starters: %w", err)
	}
	subs, err := marshalJSON(item.Lineup.Subs, "[]")
	if err != nil {
		return fmt.Errorf("marshal subs: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert team tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.InsertInto("teams").
		Columns("public_id", "league_public_id", "name", "formation", "tactics", "starters", "subs").
		Values(item.ID, item.LeagueID, item.Name, item.Lineup.Formation, tactics, starters, subs).
		Suffix(`ON CONFLICT (public_id) DO UPDATE SET
    name = EXCLUDED.name,
    formation = EXCLUDED.formation,
    tactics = EXCLUDED.tactics,
    starters = EXCLUDED.starters,
    subs = EXCLUDED.subs,
    updated_at = NOW()`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert team query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team id=%s: %w", item.ID, err)
	}

	if len(item.Players) > 0 {
		models := make([]any, 0, len(item.Players))
		for _, p := range item.Players {
			models = append(models, teamPlayerTableModel{
				PublicID: p.ID,
				TeamID:   item.ID,
				Position: p.Position,
				Overall:  p.Overall,
			})
		}
		query, args, err = qb.InsertModels("team_players", models, `ON CONFLICT (public_id) DO UPDATE SET
    team_public_id = EXCLUDED.team_public_id,
    position = EXCLUDED.position,
    overall = EXCLUDED.overall`)
		if err != nil {
			return fmt.Errorf("build upsert team players query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert team players team=%s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert team tx: %w", err)
	}
	return nil
}

func (r *TeamRepository) attachPlayers(ctx context.Context, rows []teamTableModel) ([]team.Team, error) {
	if len(rows) == 0 {
		return []team.Team{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.PublicID)
	}

	query, args, err := qb.Select("public_id", "team_public_id", "position", "overall").
		From("team_players").
		Where(qb.InStrings("team_public_id", ids)).
		OrderBy("team_public_id", "public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select team players query: %w", err)
	}

	var players []teamPlayerTableModel
	if err := r.db.SelectContext(ctx, &players, query, args...); err != nil {
		return nil, fmt.Errorf("select team players: %w", err)
	}

	byTeam := make(map[string][]team.Player, len(rows))
	for _, p := range players {
		byTeam[p.TeamID] = append(byTeam[p.TeamID], team.Player{
			ID:       p.PublicID,
			Position: p.Position,
			Overall:  p.Overall,
		})
	}

	out := make([]team.Team, 0, len(rows))
	for _, row := range rows {
		item, err := mapTeamRow(row)
		if err != nil {
			return nil, err
		}
		item.Players = byTeam[row.PublicID]
		out = append(out, item)
	}
	return out, nil
}

func mapTeamRow(row teamTableModel) (team.Team, error) {
	item := team.Team{
		ID:       row.PublicID,
		LeagueID: row.LeagueID,
		Name:     row.Name,
		Lineup:   team.Lineup{Formation: row.Formation},
	}
	if err := unmarshalJSON(row.Tactics, &item.Lineup.Tactics); err != nil {
		return team.Team{}, fmt.Errorf("decode tactics team=%s: %w", row.PublicID, err)
	}
	if err := unmarshalJSON(row.Starters, &item.Lineup.Starters); err != nil {
		return team.Team{}, fmt.Errorf("decode starters team=%s: %w", row.PublicID, err)
	}
	if err := unmarshalJSON(row.Subs, &item.Lineup.Subs); err != nil {
		return team.Team{}, fmt.Errorf("decode subs team=%s: %w", row.PublicID, err)
	}
	return item, nil
}
