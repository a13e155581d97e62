package usecase

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"golang.org/x/sync/errgroup"
)

type HeartbeatConfig struct {
	// RequiredStages lists flags that must be true; "a|b" accepts either.
	RequiredStages   []string
	LongRunningAfter time.Duration
	StaleScanLimit   int
}

type HealthReport struct {
	OK        bool           `json:"ok"`
	Day       string         `json:"day"`
	Problems  []string       `json:"problems,omitempty"`
	Heartbeat map[string]any `json:"heartbeat,omitempty"`
}

type HeartbeatService struct {
	repo        heartbeat.Repository
	fixtureRepo fixture.Repository
	alerter     Alerter
	clock       clock.Clock
	cfg         HeartbeatConfig
	logger      *logging.Logger
}

func NewHeartbeatService(
	repo heartbeat.Repository,
	fixtureRepo fixture.Repository,
	alerter Alerter,
	clk clock.Clock,
	cfg HeartbeatConfig,
	logger *logging.Logger,
) *HeartbeatService {
	if alerter == nil {
		alerter = noopAlerter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(cfg.RequiredStages) == 0 {
		cfg.RequiredStages = []string{heartbeat.FieldLockOK, heartbeat.FieldOrchestrateOK + "|" + heartbeat.FieldBatchOK}
	}
	if cfg.LongRunningAfter <= 0 {
		cfg.LongRunningAfter = 20 * time.Minute
	}
	if cfg.StaleScanLimit <= 0 {
		cfg.StaleScanLimit = 50
	}
	return &HeartbeatService{
		repo:        repo,
		fixtureRepo: fixtureRepo,
		alerter:     alerter,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

// Mark merges patch into today's heartbeat.
func (s *HeartbeatService) Mark(ctx context.Context, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	day := s.clock.Today()
	if err := s.repo.Merge(ctx, day, patch, s.clock.Now()); err != nil {
		return fmt.Errorf("merge heartbeat day=%s: %w", day, err)
	}
	return nil
}

func (s *HeartbeatService) Get(ctx context.Context, day string) (heartbeat.Heartbeat, error) {
	if strings.TrimSpace(day) == "" {
		day = s.clock.Today()
	}
	if _, err := clock.ParseDay(day, s.clock.Location()); err != nil {
		return heartbeat.Heartbeat{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hb, exists, err := s.repo.Get(ctx, day)
	if err != nil {
		return heartbeat.Heartbeat{}, fmt.Errorf("get heartbeat day=%s: %w", day, err)
	}
	if !exists {
		return heartbeat.Heartbeat{Day: day, Fields: map[string]any{}}, nil
	}
	return hb, nil
}

// Check lists today's problems: unset stage flags, fixtures still waiting
// after kickoff, and fixtures running for too long.
func (s *HeartbeatService) Check(ctx context.Context) (HealthReport, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.HeartbeatService.Check")
	defer span.End()

	now := s.clock.Now()
	day := s.clock.Today()

	var (
		hb          heartbeat.Heartbeat
		found       bool
		overdue     []fixture.Fixture
		longRunning int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hb, found, err = s.repo.Get(gctx, day)
		if err != nil {
			return fmt.Errorf("get heartbeat day=%s: %w", day, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		overdue, err = s.fixtureRepo.ListByKickoff(gctx, fixture.KickoffQuery{
			Before:   now,
			Statuses: []fixture.Status{fixture.StatusScheduled, fixture.StatusLocked},
			Limit:    s.cfg.StaleScanLimit,
		})
		if err != nil {
			return fmt.Errorf("list overdue fixtures: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		longRunning, err = s.fixtureRepo.CountStartedBefore(gctx, fixture.StatusRunning, now.Add(-s.cfg.LongRunningAfter))
		if err != nil {
			return fmt.Errorf("count long running fixtures: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return HealthReport{}, err
	}
	if !found {
		hb = heartbeat.Heartbeat{Day: day, Fields: map[string]any{}}
	}

	report := HealthReport{Day: day, Heartbeat: hb.Fields}
	report.Problems = append(report.Problems, missingStages(hb, s.cfg.RequiredStages)...)
	if len(overdue) > 0 {
		report.Problems = append(report.Problems, "scheduledPast="+strconv.Itoa(len(overdue)))
	}
	if longRunning > 0 {
		report.Problems = append(report.Problems, "longRunning="+strconv.Itoa(longRunning))
	}
	report.OK = len(report.Problems) == 0
	return report, nil
}

// RunWatchdog checks today's heartbeat and alerts once listing every problem.
func (s *HeartbeatService) RunWatchdog(ctx context.Context) (HealthReport, error) {
	report, err := s.Check(ctx)
	if err != nil {
		return HealthReport{}, err
	}
	if report.OK {
		return report, nil
	}

	s.logger.WarnContext(ctx, "pipeline health check failed", "day", report.Day, "problems", report.Problems)
	alertErr := s.alerter.Alert(ctx, Alert{
		Severity: SeverityCritical,
		Title:    "Matchday pipeline health check failed",
		Message:  strings.Join(report.Problems, "\n"),
		Fields:   map[string]string{"day": report.Day},
	})
	if alertErr != nil {
		s.logger.ErrorContext(ctx, "send health alert failed", "day", report.Day, "error", alertErr)
	}
	return report, nil
}

func missingStages(hb heartbeat.Heartbeat, required []string) []string {
	var out []string
	for _, stage := range required {
		options := strings.Split(stage, "|")
		satisfied := false
		for _, option := range options {
			if hb.Bool(strings.TrimSpace(option)) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			out = append(out, "missing stage: "+stage)
		}
	}
	sort.Strings(out)
	return out
}

// markStage records a stage's completion. Heartbeat trouble never fails
// the stage itself; the health watchdog will notice the gap instead.
func markStage(ctx context.Context, marker HeartbeatMarker, logger *logging.Logger, patch map[string]any) {
	if err := marker.Mark(ctx, patch); err != nil {
		logger.WarnContext(ctx, "mark heartbeat failed", "patch", patch, "error", err)
	}
}
