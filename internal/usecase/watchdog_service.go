package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/failedjob"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type WatchdogOutcome string

const (
	OutcomePlayed   WatchdogOutcome = "played"
	OutcomeRetried  WatchdogOutcome = "retried"
	OutcomePoisoned WatchdogOutcome = "poisoned"
)

type WatchdogConfig struct {
	MaxRetries int
	Delay      time.Duration
}

type FinalizeInput struct {
	MatchID  string
	LeagueID string
	Attempt  int
}

type FinalizeResult struct {
	OK          bool            `json:"ok"`
	MatchID     string          `json:"matchId"`
	LeagueID    string          `json:"leagueId"`
	Outcome     WatchdogOutcome `json:"outcome"`
	Attempt     int             `json:"attempt"`
	NextAttempt *int            `json:"nextAttempt,omitempty"`
	Reason      string          `json:"reason,omitempty"`
}

// MatchStarter is the part of DispatchService the watchdog re-drives.
type MatchStarter interface {
	StartMatch(ctx context.Context, input StartMatchInput) (StartMatchResult, error)
}

// WatchdogService bounds how long a fixture may stay unplayed. Each check
// either sees it played, re-dispatches and schedules the next check, or
// gives up and poisons it.
type WatchdogService struct {
	fixtureRepo fixture.Repository
	failedRepo  failedjob.Repository
	starter     MatchStarter
	tasks       *TaskScheduler
	alerter     Alerter
	clock       clock.Clock
	cfg         WatchdogConfig
	logger      *logging.Logger
}

func NewWatchdogService(
	fixtureRepo fixture.Repository,
	failedRepo failedjob.Repository,
	starter MatchStarter,
	tasks *TaskScheduler,
	alerter Alerter,
	clk clock.Clock,
	cfg WatchdogConfig,
	logger *logging.Logger,
) *WatchdogService {
	if tasks == nil {
		tasks = NewTaskScheduler(nil, nil, logger)
	}
	if alerter == nil {
		alerter = noopAlerter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 20 * time.Minute
	}
	return &WatchdogService{
		fixtureRepo: fixtureRepo,
		failedRepo:  failedRepo,
		starter:     starter,
		tasks:       tasks,
		alerter:     alerter,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *WatchdogService) Finalize(ctx context.Context, input FinalizeInput) (result FinalizeResult, err error) {
	input.MatchID = strings.TrimSpace(input.MatchID)
	input.LeagueID = strings.TrimSpace(input.LeagueID)
	ctx, span := startUsecaseSpan(ctx, "usecase.WatchdogService.Finalize",
		append(matchAttrs(input.LeagueID, input.MatchID), attribute.Int("watchdog.attempt", input.Attempt))...)
	defer func() { endSpan(span, err) }()

	if input.MatchID == "" || input.LeagueID == "" {
		return FinalizeResult{}, fmt.Errorf("%w: matchId and leagueId are required", ErrInvalidInput)
	}
	if input.Attempt < 0 {
		return FinalizeResult{}, fmt.Errorf("%w: attempt must be >= 0", ErrInvalidInput)
	}

	item, exists, err := s.fixtureRepo.GetByID(ctx, input.LeagueID, input.MatchID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("get fixture: %w", err)
	}
	if !exists {
		return FinalizeResult{}, fmt.Errorf("%w: fixture league=%s match=%s", ErrNotFound, input.LeagueID, input.MatchID)
	}

	result = FinalizeResult{OK: true, MatchID: item.ID, LeagueID: item.LeagueID, Attempt: input.Attempt}
	if item.Status == fixture.StatusPlayed {
		result.Outcome = OutcomePlayed
		return result, nil
	}

	next := input.Attempt + 1
	if next < s.cfg.MaxRetries {
		return s.retry(ctx, item, next, result)
	}
	return s.poison(ctx, item, input.Attempt, result)
}

func (s *WatchdogService) retry(ctx context.Context, item fixture.Fixture, next int, result FinalizeResult) (FinalizeResult, error) {
	if item.Status != fixture.StatusFailed {
		if _, err := s.starter.StartMatch(ctx, StartMatchInput{MatchID: item.ID, LeagueID: item.LeagueID, ForceRedispatch: true}); err != nil {
			s.logger.ErrorContext(ctx, "watchdog re-dispatch failed",
				"match_id", item.ID,
				"league_id", item.LeagueID,
				"attempt", result.Attempt,
				"error", err,
			)
		}
	}
	if err := s.tasks.ScheduleFinalize(ctx, item.LeagueID, item.ID, next, s.cfg.Delay); err != nil {
		return FinalizeResult{}, fmt.Errorf("%w: schedule watchdog attempt %d: %v", ErrDependencyUnavailable, next, err)
	}
	s.logger.InfoContext(ctx, "watchdog retried fixture",
		"match_id", item.ID,
		"league_id", item.LeagueID,
		"status", item.Status,
		"next_attempt", next,
	)
	result.Outcome = OutcomeRetried
	result.NextAttempt = &next
	return result, nil
}

func (s *WatchdogService) poison(ctx context.Context, item fixture.Fixture, attempt int, result FinalizeResult) (FinalizeResult, error) {
	reason := "watchdog_exhausted:last_status=" + string(item.Status)
	now := s.clock.Now()

	changed, err := s.fixtureRepo.MarkFailed(ctx, item.LeagueID, item.ID, reason, now)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("mark fixture failed: %w", err)
	}
	if !changed && item.Status != fixture.StatusFailed {
		// Played in the meantime; the conditional update never overrides it.
		current, exists, err := s.fixtureRepo.GetByID(ctx, item.LeagueID, item.ID)
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("get fixture: %w", err)
		}
		if exists && current.Status == fixture.StatusPlayed {
			result.Outcome = OutcomePlayed
			return result, nil
		}
	}

	created, err := s.failedRepo.Save(ctx, failedjob.Record{
		MatchID:    item.ID,
		LeagueID:   item.LeagueID,
		LastStatus: item.Status,
		Reason:     reason,
		Attempt:    attempt,
		CreatedAt:  now,
	})
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("save failed job: %w", err)
	}

	result.Outcome = OutcomePoisoned
	result.Reason = reason
	if !created {
		return result, nil
	}

	metrics.add(ctx, metrics.poisoned)
	s.logger.ErrorContext(ctx, "fixture poisoned after watchdog retries",
		"match_id", item.ID,
		"league_id", item.LeagueID,
		"attempt", attempt,
		"reason", reason,
	)
	alert := Alert{
		Severity: SeverityCritical,
		Title:    "Match poisoned",
		Message:  fmt.Sprintf("match %s in league %s was not played after %d checks", item.ID, item.LeagueID, attempt+1),
		Fields: map[string]string{
			"matchId":  item.ID,
			"leagueId": item.LeagueID,
			"attempt":  strconv.Itoa(attempt),
			"reason":   reason,
		},
	}
	if err := s.alerter.Alert(ctx, alert); err != nil {
		s.logger.WarnContext(ctx, "send poison alert failed", "match_id", item.ID, "error", err)
	}
	return result, nil
}
