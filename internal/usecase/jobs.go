package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

const (
	PathStartMatch       = "/v1/internal/matches/start"
	PathFinalizeWatchdog = "/v1/internal/matches/finalize-watchdog"
)

type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

// ErrJobQueueDisabled is returned when no delayed queue is configured, so
// callers never report a task as scheduled when nothing will run it.
var ErrJobQueueDisabled = errors.New("job queue disabled")

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return ErrJobQueueDisabled
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

// StartMatchTask is the body of a queued start-match call.
type StartMatchTask struct {
	MatchID         string `json:"matchId"`
	LeagueID        string `json:"leagueId"`
	ForceRedispatch bool   `json:"forceRedispatch,omitempty"`
	DispatchID      string `json:"dispatchId,omitempty"`
}

// FinalizeTask is the body of a queued finalize-watchdog call.
type FinalizeTask struct {
	MatchID    string `json:"matchId"`
	LeagueID   string `json:"leagueId"`
	Attempt    int    `json:"attempt"`
	DispatchID string `json:"dispatchId,omitempty"`
}

// TaskScheduler puts start-match and finalize-watchdog tasks on the delayed
// queue and audits every enqueue as a dispatch event.
type TaskScheduler struct {
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	logger       *logging.Logger
	now          func() time.Time
}

func NewTaskScheduler(queue JobQueue, dispatchRepo jobscheduler.Repository, logger *logging.Logger) *TaskScheduler {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TaskScheduler{
		queue:        queue,
		dispatchRepo: dispatchRepo,
		logger:       logger,
		now:          time.Now,
	}
}

// ScheduleStart dedups per match and UTC day so a re-run orchestrate
// cannot queue a second start for the same fixture that day.
func (s *TaskScheduler) ScheduleStart(ctx context.Context, leagueID, matchID string) error {
	dedupID := dedupKey("start", leagueID, matchID, s.now().UTC().Format("20060102"))
	task := StartMatchTask{MatchID: matchID, LeagueID: leagueID, DispatchID: dedupID}
	return s.enqueue(ctx, jobscheduler.JobStartMatch, PathStartMatch, leagueID, matchID, 0, task, 0, dedupID)
}

func (s *TaskScheduler) ScheduleFinalize(ctx context.Context, leagueID, matchID string, attempt int, delay time.Duration) error {
	dedupID := dedupKey("finalize", leagueID, matchID, strconv.Itoa(attempt))
	task := FinalizeTask{MatchID: matchID, LeagueID: leagueID, Attempt: attempt, DispatchID: dedupID}
	return s.enqueue(ctx, jobscheduler.JobFinalizeWatchdog, PathFinalizeWatchdog, leagueID, matchID, attempt, task, delay, dedupID)
}

func (s *TaskScheduler) enqueue(ctx context.Context, jobName, path, leagueID, matchID string, attempt int, task any, delay time.Duration, dedupID string) error {
	event := jobscheduler.DispatchEvent{
		DispatchID: dedupID,
		JobName:    jobName,
		JobPath:    path,
		LeagueID:   leagueID,
		MatchID:    matchID,
		Attempt:    attempt,
		Status:     jobscheduler.StatusSent,
		Payload:    map[string]any{"match_id": matchID, "league_id": leagueID, "attempt": attempt, "delay_seconds": int(delay.Seconds())},
	}
	if err := s.queue.Enqueue(ctx, path, task, delay, dedupID); err != nil {
		if errors.Is(err, ErrJobQueueDisabled) {
			return fmt.Errorf("enqueue %s match=%s: %w", jobName, matchID, err)
		}
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		s.RecordDispatchEvent(ctx, event)
		return fmt.Errorf("enqueue %s match=%s: %w", jobName, matchID, err)
	}
	s.RecordDispatchEvent(ctx, event)
	return nil
}

// RecordDispatchEvent is best effort: audit failures are logged, never returned.
func (s *TaskScheduler) RecordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	if s == nil || s.dispatchRepo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	event.TraceID, event.SpanID = traceMetaFromContext(ctx)
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	if err := s.dispatchRepo.UpsertEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// dedupKey joins sanitized parts; QStash rejects ':' and '/' in dedup ids.
func dedupKey(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		out = append(out, sanitizeDedupSegment(part))
	}
	return strings.Join(out, "-")
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}
