package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	qb "github.com/riskibarqy/matchday-pipeline/internal/platform/querybuilder"
)

// jobDispatchUpsertSuffix mirrors jobscheduler.Merge: attempt and missing
// fields always merge, the status columns only move to an equal or higher
// rank.
const jobDispatchUpsertSuffix = `ON CONFLICT (dispatch_id) DO UPDATE SET
    attempt = GREATEST(job_dispatches.attempt, EXCLUDED.attempt),
    match_public_id = COALESCE(NULLIF(job_dispatches.match_public_id, ''), EXCLUDED.match_public_id),
    payload = CASE
        WHEN EXCLUDED.status_rank >= job_dispatches.status_rank AND EXCLUDED.payload <> '{}'::jsonb THEN EXCLUDED.payload
        WHEN job_dispatches.payload = '{}'::jsonb THEN EXCLUDED.payload
        ELSE job_dispatches.payload
    END,
    status = CASE WHEN EXCLUDED.status_rank >= job_dispatches.status_rank THEN EXCLUDED.status ELSE job_dispatches.status END,
    status_rank = GREATEST(job_dispatches.status_rank, EXCLUDED.status_rank),
    sent_at = COALESCE(job_dispatches.sent_at, EXCLUDED.sent_at),
    completed_at = COALESCE(job_dispatches.completed_at, EXCLUDED.completed_at),
    failed_at = COALESCE(EXCLUDED.failed_at, job_dispatches.failed_at),
    last_error = CASE
        WHEN EXCLUDED.status_rank >= job_dispatches.status_rank THEN EXCLUDED.last_error
        ELSE job_dispatches.last_error
    END,
    trace_id = CASE WHEN EXCLUDED.status_rank >= job_dispatches.status_rank THEN EXCLUDED.trace_id ELSE job_dispatches.trace_id END,
    span_id = CASE WHEN EXCLUDED.status_rank >= job_dispatches.status_rank THEN EXCLUDED.span_id ELSE job_dispatches.span_id END,
    updated_at = NOW()`

type JobDispatchRepository struct {
	db *sqlx.DB
}

func NewJobDispatchRepository(db *sqlx.DB) *JobDispatchRepository {
	return &JobDispatchRepository{db: db}
}

func (r *JobDispatchRepository) UpsertEvent(ctx context.Context, event jobscheduler.DispatchEvent) error {
	model, err := newJobDispatchModel(event)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel("job_dispatches", model, jobDispatchUpsertSuffix)
	if err != nil {
		return fmt.Errorf("build upsert job dispatch query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert job dispatch dispatch_id=%s status=%s: %w", model.DispatchID, model.Status, err)
	}
	return nil
}

func newJobDispatchModel(event jobscheduler.DispatchEvent) (jobDispatchInsertModel, error) {
	dispatchID := strings.TrimSpace(event.DispatchID)
	if dispatchID == "" {
		return jobDispatchInsertModel{}, fmt.Errorf("dispatch id is required")
	}
	if !event.Status.Valid() {
		return jobDispatchInsertModel{}, fmt.Errorf("unknown dispatch status %q", event.Status)
	}

	at := event.OccurredAt.UTC()
	if event.OccurredAt.IsZero() {
		at = time.Now().UTC()
	}
	payload, err := marshalJSON(event.Payload, "{}")
	if err != nil {
		return jobDispatchInsertModel{}, fmt.Errorf("marshal job dispatch payload: %w", err)
	}

	model := jobDispatchInsertModel{
		DispatchID: dispatchID,
		JobName:    defaultString(event.JobName, "unknown"),
		JobPath:    defaultString(event.JobPath, "/unknown"),
		LeagueID:   defaultString(event.LeagueID, "unknown"),
		MatchID:    strings.TrimSpace(event.MatchID),
		Attempt:    event.Attempt,
		Payload:    payload,
		Status:     string(event.Status),
		StatusRank: event.Status.Rank(),
		TraceID:    optionalString(event.TraceID),
		SpanID:     optionalString(event.SpanID),
	}
	switch event.Status {
	case jobscheduler.StatusSent:
		model.SentAt = &at
	case jobscheduler.StatusCompleted:
		model.CompletedAt = &at
	case jobscheduler.StatusFailed:
		model.FailedAt = &at
		model.LastError = optionalString(event.ErrorMessage)
	}
	return model, nil
}

func defaultString(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
