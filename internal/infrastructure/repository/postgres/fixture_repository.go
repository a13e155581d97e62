package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

type FixtureRepository struct {
	db *sqlx.DB
}

func NewFixtureRepository(db *sqlx.DB) *FixtureRepository {
	return &FixtureRepository{db: db}
}

func (r *FixtureRepository) GetByID(ctx context.Context, leagueID, matchID string) (fixture.Fixture, bool, error) {
	query, args, err := qb.Select(fixtureColumns...).From("fixtures").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", matchID),
		).
		Limit(1).
		ToSQL()
	if err != nil {
		return fixture.Fixture{}, false, fmt.Errorf("build select fixture by id query: %w", err)
	}

	var row fixtureTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return fixture.Fixture{}, false, nil
		}
		return fixture.Fixture{}, false, fmt.Errorf("get fixture league=%s match=%s: %w", leagueID, matchID, err)
	}

	return mapFixtureRow(row), true, nil
}

func (r *FixtureRepository) ListByKickoff(ctx context.Context, q fixture.KickoffQuery) ([]fixture.Fixture, error) {
	conditions := make([]qb.Condition, 0, 4)
	if !q.From.IsZero() {
		conditions = append(conditions, qb.Gte("kickoff_at", q.From.UTC()))
	}
	if !q.To.IsZero() {
		conditions = append(conditions, qb.Lte("kickoff_at", q.To.UTC()))
	}
	if !q.Before.IsZero() {
		conditions = append(conditions, qb.Lt("kickoff_at", q.Before.UTC()))
	}
	if len(q.Statuses) > 0 {
		conditions = append(conditions, qb.InStrings("status", q.Statuses))
	}

	builder := qb.Select(fixtureColumns...).From("fixtures").
		Where(conditions...).
		OrderBy("kickoff_at", "league_public_id", "public_id")
	if q.Limit > 0 {
		builder = builder.Limit(q.Limit)
	}
	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select fixtures by kickoff query: %w", err)
	}

	return r.selectFixtures(ctx, query, args, "select fixtures by kickoff")
}

func (r *FixtureRepository) ListByLeague(ctx context.Context, leagueID string) ([]fixture.Fixture, error) {
	query, args, err := qb.Select(fixtureColumns...).From("fixtures").
		Where(qb.Eq("league_public_id", leagueID)).
		OrderBy("kickoff_at", "public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select fixtures by league query: %w", err)
	}

	return r.selectFixtures(ctx, query, args, "select fixtures by league")
}

func (r *FixtureRepository) CountStartedBefore(ctx context.Context, status fixture.Status, before time.Time) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From("fixtures").
		Where(
			qb.Eq("status", string(status)),
			qb.Lt("started_at", before.UTC()),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count started fixtures query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count started fixtures status=%s: %w", status, err)
	}
	return count, nil
}

func (r *FixtureRepository) CountOpenByLeague(ctx context.Context, leagueID string) (int, error) {
	query, args, err := qb.Select("COUNT(1)").From("fixtures").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Expr("status NOT IN (?, ?)", string(fixture.StatusPlayed), string(fixture.StatusFailed)),
		).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count open fixtures query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count open fixtures league=%s: %w", leagueID, err)
	}
	return count, nil
}

// InsertMany skips fixtures whose (league, match) pair already exists.
func (r *FixtureRepository) InsertMany(ctx context.Context, fixtures []fixture.Fixture) (int, error) {
	if len(fixtures) == 0 {
		return 0, nil
	}

	models := make([]any, 0, len(fixtures))
	for _, item := range fixtures {
		status := item.Status
		if status == "" {
			status = fixture.StatusScheduled
		}
		models = append(models, fixtureInsertModel{
			PublicID:   item.ID,
			LeagueID:   item.LeagueID,
			SeasonID:   item.SeasonID,
			Round:      item.Round,
			HomeTeamID: item.HomeTeamID,
			AwayTeamID: item.AwayTeamID,
			KickoffAt:  item.KickoffAt.UTC(),
			Seed:       nullableInt64(item.Seed),
			Status:     string(status),
		})
	}

	query, args, err := qb.InsertModels("fixtures", models, "ON CONFLICT (league_public_id, public_id) DO NOTHING")
	if err != nil {
		return 0, fmt.Errorf("build insert fixtures query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert fixtures: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read inserted fixtures count: %w", err)
	}
	return int(affected), nil
}

func (r *FixtureRepository) MarkLocked(ctx context.Context, leagueID, matchID string) (bool, error) {
	query, args, err := qb.Update("fixtures").
		Set("status", string(fixture.StatusLocked)).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", matchID),
			qb.Eq("status", string(fixture.StatusScheduled)),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build lock fixture query: %w", err)
	}

	return r.execTransition(ctx, query, args, "lock fixture", matchID)
}

// MarkRunning also accepts running so a forced re-dispatch bumps the
// dispatch counter and start time.
func (r *FixtureRepository) MarkRunning(ctx context.Context, leagueID, matchID string, at time.Time) (bool, error) {
	query, args, err := qb.Update("fixtures").
		Set("status", string(fixture.StatusRunning)).
		Set("started_at", at.UTC()).
		SetExpr("dispatch_count", "dispatch_count + 1").
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", matchID),
			qb.InStrings("status", []fixture.Status{fixture.StatusScheduled, fixture.StatusLocked, fixture.StatusRunning}),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark running query: %w", err)
	}

	return r.execTransition(ctx, query, args, "mark fixture running", matchID)
}

func (r *FixtureRepository) MarkFailed(ctx context.Context, leagueID, matchID, reason string, at time.Time) (bool, error) {
	query, args, err := qb.Update("fixtures").
		Set("status", string(fixture.StatusFailed)).
		Set("fail_reason", reason).
		Set("failed_at", at.UTC()).
		SetExpr("updated_at", "NOW()").
		Where(
			qb.Eq("league_public_id", leagueID),
			qb.Eq("public_id", matchID),
			qb.InStrings("status", []fixture.Status{fixture.StatusScheduled, fixture.StatusLocked, fixture.StatusRunning}),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark failed query: %w", err)
	}

	return r.execTransition(ctx, query, args, "mark fixture failed", matchID)
}

func (r *FixtureRepository) execTransition(ctx context.Context, query string, args []any, op, matchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s match=%s: %w", op, matchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected match=%s: %w", op, matchID, err)
	}
	return affected > 0, nil
}

func (r *FixtureRepository) selectFixtures(ctx context.Context, query string, args []any, op string) ([]fixture.Fixture, error) {
	var rows []fixtureTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]fixture.Fixture, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapFixtureRow(row))
	}
	return out, nil
}

func mapFixtureRow(row fixtureTableModel) fixture.Fixture {
	out := fixture.Fixture{
		ID:            row.PublicID,
		LeagueID:      row.LeagueID,
		SeasonID:      row.SeasonID,
		Round:         row.Round,
		HomeTeamID:    row.HomeTeamID,
		AwayTeamID:    row.AwayTeamID,
		KickoffAt:     row.KickoffAt.UTC(),
		Seed:          nullInt64Ptr(row.Seed),
		Status:        fixture.Status(row.Status),
		ReplayPath:    row.ReplayPath,
		FailReason:    row.FailReason,
		DispatchCount: row.DispatchCount,
		StartedAt:     nullTimePtr(row.StartedAt),
		PlayedAt:      nullTimePtr(row.PlayedAt),
		FailedAt:      nullTimePtr(row.FailedAt),
	}
	if row.HomeScore.Valid && row.AwayScore.Valid {
		out.Score = &fixture.Score{Home: int(row.HomeScore.Int64), Away: int(row.AwayScore.Int64)}
	}
	return out
}

func scoreColumns(score *fixture.Score) (sql.NullInt64, sql.NullInt64) {
	if score == nil {
		return sql.NullInt64{}, sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(score.Home), Valid: true}, sql.NullInt64{Int64: int64(score.Away), Valid: true}
}
