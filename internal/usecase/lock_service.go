package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

type LockConfig struct {
	Workers     int
	ItemTimeout time.Duration
}

type LockResult struct {
	OK                bool   `json:"ok"`
	Day               string `json:"day"`
	MatchesConsidered int    `json:"matchesConsidered"`
	PlansCreated      int    `json:"plansCreated"`
	Skipped           int    `json:"skipped"`
}

type lockOutcome string

const (
	lockCreated     lockOutcome = "created"
	lockExists      lockOutcome = "exists"
	lockTeamMissing lockOutcome = "team_missing"
)

// LockService freezes tonight's lineups into match plans.
type LockService struct {
	fixtureRepo fixture.Repository
	planRepo    matchplan.Repository
	teamRepo    team.Repository
	heartbeat   HeartbeatMarker
	clock       clock.Clock
	cfg         LockConfig
	logger      *logging.Logger
	newSeed     func() int64
}

func NewLockService(
	fixtureRepo fixture.Repository,
	planRepo matchplan.Repository,
	teamRepo team.Repository,
	marker HeartbeatMarker,
	clk clock.Clock,
	cfg LockConfig,
	logger *logging.Logger,
) *LockService {
	if marker == nil {
		marker = noopHeartbeat{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 20 * time.Second
	}
	return &LockService{
		fixtureRepo: fixtureRepo,
		planRepo:    planRepo,
		teamRepo:    teamRepo,
		heartbeat:   marker,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
		newSeed:     rand.Int64,
	}
}

// LockWindowSnapshot creates a plan for every scheduled fixture in
// tonight's window. Re-running it is safe: existing plans are skipped.
func (s *LockService) LockWindowSnapshot(ctx context.Context) (LockResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LockService.LockWindowSnapshot")
	defer span.End()

	day := s.clock.Today()
	window, err := s.clock.WindowFor(day)
	if err != nil {
		return LockResult{}, fmt.Errorf("compute window day=%s: %w", day, err)
	}

	fixtures, err := s.fixtureRepo.ListByKickoff(ctx, fixture.KickoffQuery{
		From:     window.Start,
		To:       window.End,
		Statuses: []fixture.Status{fixture.StatusScheduled},
	})
	if err != nil {
		return LockResult{}, fmt.Errorf("list fixtures to lock day=%s: %w", day, err)
	}

	var created, skipped atomic.Int32
	if len(fixtures) > 0 {
		pool, err := ants.NewPool(min(s.cfg.Workers, len(fixtures)))
		if err != nil {
			return LockResult{}, fmt.Errorf("create worker pool: %w", err)
		}
		defer pool.Release()

		var workers sync.WaitGroup
		for _, item := range fixtures {
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()

				itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
				defer cancel()

				outcome, err := s.lockOne(itemCtx, item)
				switch {
				case err != nil:
					skipped.Add(1)
					metrics.add(ctx, metrics.itemsSkipped, attribute.String("stage", "lock"), attribute.String("reason", "error"))
					s.logger.ErrorContext(ctx, "lock fixture failed",
						"match_id", item.ID,
						"league_id", item.LeagueID,
						"error", err,
					)
				case outcome == lockCreated:
					created.Add(1)
					metrics.add(ctx, metrics.plansCreated)
				default:
					skipped.Add(1)
					metrics.add(ctx, metrics.itemsSkipped, attribute.String("stage", "lock"), attribute.String("reason", string(outcome)))
				}
			}); err != nil {
				workers.Done()
				return LockResult{}, fmt.Errorf("submit lock task: %w", err)
			}
		}
		workers.Wait()
	}

	result := LockResult{
		OK:                true,
		Day:               day,
		MatchesConsidered: len(fixtures),
		PlansCreated:      int(created.Load()),
		Skipped:           int(skipped.Load()),
	}
	markStage(ctx, s.heartbeat, s.logger, map[string]any{
		heartbeat.FieldLockOK:        true,
		heartbeat.FieldMatchesLocked: result.MatchesConsidered,
	})
	s.logger.InfoContext(ctx, "lock window snapshot done",
		"day", day,
		"matches_considered", result.MatchesConsidered,
		"plans_created", result.PlansCreated,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (s *LockService) lockOne(ctx context.Context, item fixture.Fixture) (lockOutcome, error) {
	_, exists, err := s.planRepo.GetByMatchID(ctx, item.ID)
	if err != nil {
		return "", fmt.Errorf("get plan: %w", err)
	}
	if exists {
		return lockExists, s.markLocked(ctx, item)
	}

	teams, err := s.teamRepo.GetByIDs(ctx, item.HomeTeamID, item.AwayTeamID)
	if err != nil {
		return "", fmt.Errorf("get teams: %w", err)
	}
	home, okHome := teams[item.HomeTeamID]
	away, okAway := teams[item.AwayTeamID]
	if !okHome || !okAway {
		s.logger.WarnContext(ctx, "skip lock, team record missing",
			"match_id", item.ID,
			"league_id", item.LeagueID,
			"home_found", okHome,
			"away_found", okAway,
		)
		return lockTeamMissing, nil
	}

	seed := s.newSeed()
	if item.Seed != nil {
		seed = *item.Seed
	}
	plan := matchplan.Plan{
		MatchID:   item.ID,
		LeagueID:  item.LeagueID,
		SeasonID:  item.SeasonID,
		Seed:      seed,
		KickoffAt: item.KickoffAt.UTC(),
		CreatedAt: s.clock.Now(),
		Home:      snapshotSide(home),
		Away:      snapshotSide(away),
	}
	if err := s.planRepo.Create(ctx, plan); err != nil {
		if errors.Is(err, matchplan.ErrAlreadyExists) {
			return lockExists, s.markLocked(ctx, item)
		}
		return "", fmt.Errorf("create plan: %w", err)
	}
	return lockCreated, s.markLocked(ctx, item)
}

func (s *LockService) markLocked(ctx context.Context, item fixture.Fixture) error {
	if _, err := s.fixtureRepo.MarkLocked(ctx, item.LeagueID, item.ID); err != nil {
		return fmt.Errorf("mark fixture locked: %w", err)
	}
	return nil
}

// snapshotSide deep-copies the live lineup so later edits cannot leak in.
func snapshotSide(t team.Team) matchplan.Side {
	tactics := make(map[string]any, len(t.Lineup.Tactics))
	for k, v := range t.Lineup.Tactics {
		tactics[k] = v
	}
	return matchplan.Side{
		TeamID:    t.ID,
		Name:      t.Name,
		Formation: t.Lineup.Formation,
		Tactics:   tactics,
		Starters:  append([]string{}, t.Lineup.Starters...),
		Subs:      append([]string{}, t.Lineup.Subs...),
	}
}
