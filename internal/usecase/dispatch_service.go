package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type DispatchMode string

const (
	DispatchModeSerial DispatchMode = "serial"
	DispatchModeQueued DispatchMode = "queued"
)

const matchSpecSchemaVersion = 1

func ParseDispatchMode(v string) (DispatchMode, error) {
	switch mode := DispatchMode(strings.ToLower(strings.TrimSpace(v))); mode {
	case DispatchModeSerial, DispatchModeQueued:
		return mode, nil
	case "":
		return DispatchModeSerial, nil
	default:
		return "", fmt.Errorf("invalid dispatch mode %q: valid values are %s, %s", v, DispatchModeSerial, DispatchModeQueued)
	}
}

type DispatchConfig struct {
	Mode          DispatchMode
	ItemTimeout   time.Duration
	FinalizeDelay time.Duration
	OverdueLimit  int
	CallbackURL   string
}

type StartMatchInput struct {
	MatchID         string
	LeagueID        string
	ForceRedispatch bool
}

type StartMatchResult struct {
	OK                bool           `json:"ok"`
	MatchID           string         `json:"matchId"`
	LeagueID          string         `json:"leagueId"`
	Status            fixture.Status `json:"status"`
	Dispatched        bool           `json:"dispatched"`
	Skipped           bool           `json:"skipped,omitempty"`
	Reason            string         `json:"reason,omitempty"`
	BatchMode         bool           `json:"batchMode,omitempty"`
	TriggerError      string         `json:"triggerError,omitempty"`
	WatchdogScheduled bool           `json:"watchdogScheduled"`
}

type OrchestrateResult struct {
	OK         bool         `json:"ok"`
	Day        string       `json:"day"`
	Count      int          `json:"count"`
	Mode       DispatchMode `json:"mode"`
	DurationMs int64        `json:"durationMs"`
	Dispatched int          `json:"dispatched"`
	Failed     int          `json:"failed"`
}

// DispatchService starts simulations and moves fixtures to running. It
// never touches scores or standings, so re-dispatching is always safe.
type DispatchService struct {
	fixtureRepo fixture.Repository
	planRepo    matchplan.Repository
	teamRepo    team.Repository
	leagueRepo  league.Repository
	trigger     WorkerTrigger
	tasks       *TaskScheduler
	heartbeat   HeartbeatMarker
	clock       clock.Clock
	cfg         DispatchConfig
	logger      *logging.Logger
}

// NewDispatchService treats a nil trigger as batch mode: fixtures are
// marked running and an external batch worker is expected to pick them up
// from the daily manifest.
func NewDispatchService(
	fixtureRepo fixture.Repository,
	planRepo matchplan.Repository,
	teamRepo team.Repository,
	leagueRepo league.Repository,
	trigger WorkerTrigger,
	tasks *TaskScheduler,
	marker HeartbeatMarker,
	clk clock.Clock,
	cfg DispatchConfig,
	logger *logging.Logger,
) *DispatchService {
	if tasks == nil {
		tasks = NewTaskScheduler(nil, nil, logger)
	}
	if marker == nil {
		marker = noopHeartbeat{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = DispatchModeSerial
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 20 * time.Second
	}
	if cfg.FinalizeDelay <= 0 {
		cfg.FinalizeDelay = 20 * time.Minute
	}
	if cfg.OverdueLimit <= 0 {
		cfg.OverdueLimit = 200
	}
	return &DispatchService{
		fixtureRepo: fixtureRepo,
		planRepo:    planRepo,
		teamRepo:    teamRepo,
		leagueRepo:  leagueRepo,
		trigger:     trigger,
		tasks:       tasks,
		heartbeat:   marker,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *DispatchService) StartMatch(ctx context.Context, input StartMatchInput) (result StartMatchResult, err error) {
	input.MatchID = strings.TrimSpace(input.MatchID)
	input.LeagueID = strings.TrimSpace(input.LeagueID)
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.StartMatch", matchAttrs(input.LeagueID, input.MatchID)...)
	defer func() { endSpan(span, err) }()

	if input.MatchID == "" || input.LeagueID == "" {
		return StartMatchResult{}, fmt.Errorf("%w: matchId and leagueId are required", ErrInvalidInput)
	}

	item, exists, err := s.fixtureRepo.GetByID(ctx, input.LeagueID, input.MatchID)
	if err != nil {
		return StartMatchResult{}, fmt.Errorf("get fixture: %w", err)
	}
	if !exists {
		return StartMatchResult{}, fmt.Errorf("%w: fixture league=%s match=%s", ErrNotFound, input.LeagueID, input.MatchID)
	}

	result = StartMatchResult{OK: true, MatchID: item.ID, LeagueID: item.LeagueID, Status: item.Status}
	switch {
	case item.Status.IsTerminal():
		result.Skipped, result.Reason = true, "status_"+string(item.Status)
		return result, nil
	case item.Status == fixture.StatusRunning && !input.ForceRedispatch:
		result.Skipped, result.Reason = true, "already_running"
		return result, nil
	}

	plan, exists, err := s.planRepo.GetByMatchID(ctx, item.ID)
	if err != nil {
		return StartMatchResult{}, fmt.Errorf("get match plan: %w", err)
	}
	if !exists {
		return StartMatchResult{}, fmt.Errorf("%w: match plan missing for match=%s, lineup was never locked", ErrNotFound, item.ID)
	}

	now := s.clock.Now()
	if s.trigger == nil {
		if err := s.markRunning(ctx, item, now, &result); err != nil {
			return StartMatchResult{}, err
		}
		result.BatchMode = true
		s.logger.InfoContext(ctx, "no worker configured, fixture left for batch worker",
			"match_id", item.ID,
			"league_id", item.LeagueID,
		)
		return result, nil
	}

	spec := s.buildSpec(ctx, item, plan)
	if err := s.trigger.Trigger(ctx, spec); err != nil {
		result.TriggerError = err.Error()
		metrics.add(ctx, metrics.dispatches, attribute.String("outcome", "trigger_failed"))
		s.logger.ErrorContext(ctx, "trigger simulation worker failed, watchdog will retry",
			"match_id", item.ID,
			"league_id", item.LeagueID,
			"force", input.ForceRedispatch,
			"error", err,
		)
	} else {
		result.Dispatched = true
		metrics.add(ctx, metrics.dispatches, attribute.String("outcome", "triggered"))
	}

	if err := s.markRunning(ctx, item, now, &result); err != nil {
		return StartMatchResult{}, err
	}
	s.activateLeague(ctx, item.LeagueID)

	// Forced re-dispatches come from the watchdog, which owns the next recheck.
	if input.ForceRedispatch {
		return result, nil
	}
	if err := s.tasks.ScheduleFinalize(ctx, item.LeagueID, item.ID, 0, s.cfg.FinalizeDelay); err != nil {
		if errors.Is(err, ErrJobQueueDisabled) {
			s.logger.WarnContext(ctx, "finalize watchdog not scheduled, job queue disabled",
				"match_id", item.ID,
				"league_id", item.LeagueID,
			)
			return result, nil
		}
		s.logger.ErrorContext(ctx, "schedule finalize watchdog failed",
			"match_id", item.ID,
			"league_id", item.LeagueID,
			"error", err,
		)
		return result, nil
	}
	result.WatchdogScheduled = true
	return result, nil
}

func (s *DispatchService) markRunning(ctx context.Context, item fixture.Fixture, now time.Time, result *StartMatchResult) error {
	changed, err := s.fixtureRepo.MarkRunning(ctx, item.LeagueID, item.ID, now)
	if err != nil {
		return fmt.Errorf("mark fixture running: %w", err)
	}
	if changed {
		result.Status = fixture.StatusRunning
		return nil
	}
	// A result can land between the trigger and this update; the
	// conditional write then leaves the fixture as it is.
	s.logger.InfoContext(ctx, "fixture moved on before running mark",
		"match_id", item.ID,
		"league_id", item.LeagueID,
	)
	return nil
}

func (s *DispatchService) activateLeague(ctx context.Context, leagueID string) {
	if s.leagueRepo == nil {
		return
	}
	if _, err := s.leagueRepo.CompareAndSetState(ctx, leagueID, league.StateScheduled, league.StateActive); err != nil {
		s.logger.WarnContext(ctx, "activate league failed", "league_id", leagueID, "error", err)
	}
}

func (s *DispatchService) buildSpec(ctx context.Context, item fixture.Fixture, plan matchplan.Plan) MatchSpec {
	rosters := map[string]team.Team{}
	if s.teamRepo != nil {
		found, err := s.teamRepo.GetByIDs(ctx, plan.Home.TeamID, plan.Away.TeamID)
		if err != nil {
			s.logger.WarnContext(ctx, "load rosters failed, sending bare player ids",
				"match_id", item.ID,
				"error", err,
			)
		} else {
			rosters = found
		}
	}

	seasonID := plan.SeasonID
	if seasonID == "" {
		seasonID = item.SeasonID
	}
	return MatchSpec{
		SchemaVersion: matchSpecSchemaVersion,
		MatchID:       item.ID,
		LeagueID:      item.LeagueID,
		SeasonID:      seasonID,
		KickoffUTC:    plan.KickoffAt.UTC().Format(time.RFC3339),
		RNGSeed:       plan.Seed,
		Dispatch:      item.DispatchCount + 1,
		CallbackURL:   s.cfg.CallbackURL,
		ResultPath:    resultKey(seasonID, item.LeagueID, item.ID),
		ReplayPath:    replayKey(seasonID, item.LeagueID, item.ID),
		Home:          specSide(plan.Home, rosters[plan.Home.TeamID]),
		Away:          specSide(plan.Away, rosters[plan.Away.TeamID]),
	}
}

func specSide(side matchplan.Side, roster team.Team) MatchSpecSide {
	index := roster.PlayerIndex()
	entries := func(ids []string) []MatchSpecEntry {
		out := make([]MatchSpecEntry, 0, len(ids))
		for _, id := range ids {
			p := index[id]
			out = append(out, MatchSpecEntry{PlayerID: id, Position: p.Position, Overall: p.Overall})
		}
		return out
	}
	return MatchSpecSide{
		TeamID:    side.TeamID,
		Name:      side.Name,
		Formation: side.Formation,
		Tactics:   side.Tactics,
		Players:   entries(side.Starters),
		Bench:     entries(side.Subs),
	}
}

// DispatchTonight starts every fixture due tonight plus any earlier one
// that never left scheduled/locked. Already running or finished fixtures
// are excluded by the status filter, so a repeated run is harmless.
func (s *DispatchService) DispatchTonight(ctx context.Context) (OrchestrateResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatchService.DispatchTonight")
	defer span.End()

	started := time.Now()
	day := s.clock.Today()
	window, err := s.clock.WindowFor(day)
	if err != nil {
		return OrchestrateResult{}, fmt.Errorf("compute window day=%s: %w", day, err)
	}

	pending := []fixture.Status{fixture.StatusScheduled, fixture.StatusLocked}
	due, err := s.fixtureRepo.ListByKickoff(ctx, fixture.KickoffQuery{From: window.Start, To: window.End, Statuses: pending})
	if err != nil {
		return OrchestrateResult{}, fmt.Errorf("list due fixtures day=%s: %w", day, err)
	}
	overdue, err := s.fixtureRepo.ListByKickoff(ctx, fixture.KickoffQuery{Before: window.Start, Statuses: pending, Limit: s.cfg.OverdueLimit})
	if err != nil {
		return OrchestrateResult{}, fmt.Errorf("list overdue fixtures day=%s: %w", day, err)
	}
	items := mergeFixtures(due, overdue)

	result := OrchestrateResult{OK: true, Day: day, Count: len(items), Mode: s.cfg.Mode}
	for _, item := range items {
		var err error
		switch s.cfg.Mode {
		case DispatchModeQueued:
			err = s.tasks.ScheduleStart(ctx, item.LeagueID, item.ID)
		default:
			err = s.startWithTimeout(ctx, item)
		}
		if err != nil {
			result.Failed++
			s.logger.ErrorContext(ctx, "dispatch fixture failed",
				"match_id", item.ID,
				"league_id", item.LeagueID,
				"mode", s.cfg.Mode,
				"error", err,
			)
			continue
		}
		result.Dispatched++
	}

	result.DurationMs = time.Since(started).Milliseconds()
	markStage(ctx, s.heartbeat, s.logger, map[string]any{
		heartbeat.FieldOrchestrateOK:    true,
		heartbeat.FieldMatchesScheduled: result.Count,
		heartbeat.FieldDispatchMode:     string(s.cfg.Mode),
	})
	s.logger.InfoContext(ctx, "orchestrate done",
		"day", day,
		"count", result.Count,
		"dispatched", result.Dispatched,
		"failed", result.Failed,
		"mode", s.cfg.Mode,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

func (s *DispatchService) startWithTimeout(ctx context.Context, item fixture.Fixture) error {
	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
	defer cancel()
	_, err := s.StartMatch(itemCtx, StartMatchInput{MatchID: item.ID, LeagueID: item.LeagueID})
	return err
}

func mergeFixtures(groups ...[]fixture.Fixture) []fixture.Fixture {
	seen := make(map[string]struct{})
	var out []fixture.Fixture
	for _, group := range groups {
		for _, item := range group {
			key := item.LeagueID + "/" + item.ID
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].KickoffAt.Equal(out[j].KickoffAt) {
			return out[i].KickoffAt.Before(out[j].KickoffAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
