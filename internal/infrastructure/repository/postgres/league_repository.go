package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

type LeagueRepository struct {
	db *sqlx.DB
}

func NewLeagueRepository(db *sqlx.DB) *LeagueRepository {
	return &LeagueRepository{db: db}
}

func (r *LeagueRepository) GetByID(ctx context.Context, leagueID string) (league.League, bool, error) {
	query, args, err := qb.Select("id", "public_id", "name", "season_id", "state", "start_date").
		From("leagues").
		Where(qb.Eq("public_id", leagueID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return league.League{}, false, fmt.Errorf("build select league by id query: %w", err)
	}

	var row leagueTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return league.League{}, false, nil
		}
		return league.League{}, false, fmt.Errorf("get league id=%s: %w", leagueID, err)
	}

	out := league.League{
		ID:       row.PublicID,
		Name:     row.Name,
		SeasonID: row.SeasonID,
		State:    league.State(row.State),
	}
	if row.StartDate.Valid {
		out.StartDate = row.StartDate.Time.Format("2006-01-02")
	}
	return out, true, nil
}

func (r *LeagueRepository) CompareAndSetState(ctx context.Context, leagueID string, from, to league.State) (bool, error) {
	query, args, err := qb.Update("leagues").
		Set("state", string(to)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("public_id", leagueID),
			qb.Eq("state", string(from)),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update league state query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update league state id=%s %s->%s: %w", leagueID, from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read league state rows affected: %w", err)
	}
	return affected > 0, nil
}

// Upsert is used by the bootstrap seed.
func (r *LeagueRepository) Upsert(ctx context.Context, item league.League) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid league: %w", err)
	}
	state := item.State
	if state == "" {
		state = league.StateForming
	}

	builder := qb.InsertInto("leagues").
		Columns("public_id", "name", "season_id", "state", "start_date")
	var startDate any
	if item.StartDate != "" {
		startDate = item.StartDate
	}
	query, args, err := builder.
		Values(item.ID, item.Name, item.SeasonID, string(state), startDate).
		Suffix("ON CONFLICT (public_id) DO UPDATE SET name = EXCLUDED.name, season_id = EXCLUDED.season_id, updated_at = NOW()").
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert league query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert league id=%s: %w", item.ID, err)
	}
	return nil
}
