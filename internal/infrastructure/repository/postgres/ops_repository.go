package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/failedjob"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

type FailedJobRepository struct {
	db *sqlx.DB
}

func NewFailedJobRepository(db *sqlx.DB) *FailedJobRepository {
	return &FailedJobRepository{db: db}
}

// Save writes the poison record once per match; later saves report
// created=false.
func (r *FailedJobRepository) Save(ctx context.Context, record failedjob.Record) (bool, error) {
	createdAt := record.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := qb.InsertModel("failed_jobs", failedJobTableModel{
		MatchID:    record.MatchID,
		LeagueID:   record.LeagueID,
		LastStatus: string(record.LastStatus),
		Reason:     record.Reason,
		Attempt:    record.Attempt,
		CreatedAt:  createdAt,
	}, "ON CONFLICT (match_public_id) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("build insert failed job query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert failed job match=%s: %w", record.MatchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read failed job rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *FailedJobRepository) Get(ctx context.Context, matchID string) (failedjob.Record, bool, error) {
	query, args, err := qb.Select("match_public_id", "league_public_id", "last_status", "reason", "attempt", "created_at").
		From("failed_jobs").
		Where(qb.Eq("match_public_id", matchID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return failedjob.Record{}, false, fmt.Errorf("build select failed job query: %w", err)
	}

	var row failedJobTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return failedjob.Record{}, false, nil
		}
		return failedjob.Record{}, false, fmt.Errorf("get failed job match=%s: %w", matchID, err)
	}

	return failedjob.Record{
		MatchID:    row.MatchID,
		LeagueID:   row.LeagueID,
		LastStatus: fixture.Status(row.LastStatus),
		Reason:     row.Reason,
		Attempt:    row.Attempt,
		CreatedAt:  row.CreatedAt.UTC(),
	}, true, nil
}

type HeartbeatRepository struct {
	db *sqlx.DB
}

func NewHeartbeatRepository(db *sqlx.DB) *HeartbeatRepository {
	return &HeartbeatRepository{db: db}
}

// Merge shallow-merges patch into the day's document with jsonb ||, so
// concurrent stages never drop each other's keys.
func (r *HeartbeatRepository) Merge(ctx context.Context, day string, patch map[string]any, at time.Time) error {
	at = at.UTC()
	fields := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		fields[k] = v
	}
	fields[heartbeat.FieldLastUpdated] = at.Format(time.RFC3339)

	payload, err := marshalJSON(fields, "{}")
	if err != nil {
		return fmt.Errorf("marshal heartbeat patch: %w", err)
	}

	query, args, err := qb.InsertInto("ops_heartbeats").
		Columns("day", "fields", "last_updated").
		Values(day, payload, at).
		Suffix(`ON CONFLICT (day) DO UPDATE SET
    fields = ops_heartbeats.fields || EXCLUDED.fields,
    last_updated = EXCLUDED.last_updated`).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build merge heartbeat query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("merge heartbeat day=%s: %w", day, err)
	}
	return nil
}

func (r *HeartbeatRepository) Get(ctx context.Context, day string) (heartbeat.Heartbeat, bool, error) {
	query, args, err := qb.Select("day", "fields", "last_updated").
		From("ops_heartbeats").
		Where(qb.Eq("day", strings.TrimSpace(day))).
		Limit(1).
		ToSQL()
	if err != nil {
		return heartbeat.Heartbeat{}, false, fmt.Errorf("build select heartbeat query: %w", err)
	}

	var row heartbeatTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return heartbeat.Heartbeat{}, false, nil
		}
		return heartbeat.Heartbeat{}, false, fmt.Errorf("get heartbeat day=%s: %w", day, err)
	}

	out := heartbeat.Heartbeat{
		Day:         row.Day.Format("2006-01-02"),
		Fields:      make(map[string]any),
		LastUpdated: row.LastUpdated.UTC(),
	}
	if err := unmarshalJSON(row.Fields, &out.Fields); err != nil {
		return heartbeat.Heartbeat{}, false, fmt.Errorf("decode heartbeat day=%s: %w", day, err)
	}
	return out, true, nil
}
