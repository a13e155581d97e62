package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

type MatchPlanRepository struct {
	db *sqlx.DB
}

func NewMatchPlanRepository(db *sqlx.DB) *MatchPlanRepository {
	return &MatchPlanRepository{db: db}
}

func (r *MatchPlanRepository) GetByMatchID(ctx context.Context, matchID string) (matchplan.Plan, bool, error) {
	query, args, err := qb.Select("match_public_id", "league_public_id", "season_id", "seed", "kickoff_at", "home", "away", "created_at").
		From("match_plans").
		Where(qb.Eq("match_public_id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return matchplan.Plan{}, false, fmt.Errorf("build select match plan query: %w", err)
	}

	var row matchPlanTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return matchplan.Plan{}, false, nil
		}
		return matchplan.Plan{}, false, fmt.Errorf("get match plan match=%s: %w", matchID, err)
	}

	plan := matchplan.Plan{
		MatchID:   row.MatchID,
		LeagueID:  row.LeagueID,
		SeasonID:  row.SeasonID,
		Seed:      row.Seed,
		KickoffAt: row.KickoffAt.UTC(),
		CreatedAt: row.CreatedAt.UTC(),
	}
	if err := unmarshalJSON(row.Home, &plan.Home); err != nil {
		return matchplan.Plan{}, false, fmt.Errorf("decode home side match=%s: %w", matchID, err)
	}
	if err := unmarshalJSON(row.Away, &plan.Away); err != nil {
		return matchplan.Plan{}, false, fmt.Errorf("decode away side match=%s: %w", matchID, err)
	}
	return plan, true, nil
}

func (r *MatchPlanRepository) Create(ctx context.Context, plan matchplan.Plan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid match plan: %w", err)
	}
	home, err := marshalJSON(plan.Home, "{}")
	if err != nil {
		return fmt.Errorf("marshal home side: %w", err)
	}
	away, err := marshalJSON(plan.Away, "{}")
	if err != nil {
		return fmt.Errorf("marshal away side: %w", err)
	}

	query, args, err := qb.InsertModel("match_plans", matchPlanInsertModel{
		MatchID:   plan.MatchID,
		LeagueID:  plan.LeagueID,
		SeasonID:  plan.SeasonID,
		Seed:      plan.Seed,
		KickoffAt: plan.KickoffAt.UTC(),
		Home:      home,
		Away:      away,
		CreatedAt: plan.CreatedAt.UTC(),
	}, "ON CONFLICT (match_public_id) DO NOTHING")
	if err != nil {
		return fmt.Errorf("build insert match plan query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert match plan match=%s: %w", plan.MatchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read match plan rows affected: %w", err)
	}
	if affected == 0 {
		return matchplan.ErrAlreadyExists
	}
	return nil
}
