package usecase

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const defaultSeasonID = "default"

type BatchConfig struct {
	Secret      string
	Workers     int
	ItemTimeout time.Duration
	WriteURLTTL time.Duration
	ReadURLTTL  time.Duration
}

// BatchItem is one fixture an external batch worker should simulate.
type BatchItem struct {
	MatchID         string    `json:"matchId"`
	LeagueID        string    `json:"leagueId"`
	SeasonID        string    `json:"seasonId"`
	HomeTeamID      string    `json:"homeTeamId"`
	AwayTeamID      string    `json:"awayTeamId"`
	Seed            int64     `json:"seed"`
	RequestToken    string    `json:"requestToken"`
	ReplayUploadURL string    `json:"replayUploadUrl"`
	ResultUploadURL string    `json:"resultUploadUrl"`
	KickoffAt       time.Time `json:"-"`
}

type BatchMeta struct {
	Day         string `json:"day"`
	TZ          string `json:"tz"`
	Count       int    `json:"count"`
	GeneratedAt string `json:"generatedAt"`
}

type BatchManifest struct {
	Meta    BatchMeta   `json:"meta"`
	Matches []BatchItem `json:"matches"`
}

type BatchResult struct {
	OK           bool   `json:"ok"`
	Day          string `json:"day"`
	Count        int    `json:"count"`
	Skipped      int    `json:"skipped"`
	BatchPath    string `json:"batchPath"`
	BatchReadURL string `json:"batchReadUrl"`
}

// BatchService writes the daily manifest consumed by the offline batch
// worker: one signed upload slot per fixture plus a request token the
// result must echo back.
type BatchService struct {
	fixtureRepo fixture.Repository
	planRepo    matchplan.Repository
	leagueRepo  league.Repository
	blobs       BlobStore
	heartbeat   HeartbeatMarker
	clock       clock.Clock
	cfg         BatchConfig
	logger      *logging.Logger
	newSeed     func() int64
}

func NewBatchService(
	fixtureRepo fixture.Repository,
	planRepo matchplan.Repository,
	leagueRepo league.Repository,
	blobs BlobStore,
	marker HeartbeatMarker,
	clk clock.Clock,
	cfg BatchConfig,
	logger *logging.Logger,
) *BatchService {
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
	if cfg.WriteURLTTL <= 0 {
		cfg.WriteURLTTL = 3 * time.Hour
	}
	if cfg.ReadURLTTL <= 0 {
		cfg.ReadURLTTL = 2 * time.Hour
	}
	return &BatchService{
		fixtureRepo: fixtureRepo,
		planRepo:    planRepo,
		leagueRepo:  leagueRepo,
		blobs:       blobs,
		heartbeat:   marker,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
		newSeed:     func() int64 { return rand.Int64N(1_000_000_000) },
	}
}

// CreateDailyBatch builds the manifest for day, or today when day is empty.
func (s *BatchService) CreateDailyBatch(ctx context.Context, day string) (result BatchResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.BatchService.CreateDailyBatch")
	defer func() { endSpan(span, err) }()

	day = strings.TrimSpace(day)
	if day == "" {
		day = s.clock.Today()
	}
	window, err := s.clock.WindowFor(day)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.cfg.Secret == "" {
		return BatchResult{}, fmt.Errorf("%w: batch secret not configured", ErrDependencyUnavailable)
	}
	if s.blobs == nil {
		return BatchResult{}, fmt.Errorf("%w: blob store not configured", ErrDependencyUnavailable)
	}

	fixtures, err := s.fixtureRepo.ListByKickoff(ctx, fixture.KickoffQuery{
		From:     window.Start,
		To:       window.End,
		Statuses: []fixture.Status{fixture.StatusScheduled, fixture.StatusLocked},
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("list batch fixtures day=%s: %w", day, err)
	}

	seasons := newSeasonResolver(s.leagueRepo)
	type entry struct {
		item BatchItem
		ok   bool
	}
	p := pool.NewWithResults[entry]().WithMaxGoroutines(s.cfg.Workers)
	for _, item := range fixtures {
		p.Go(func() entry {
			itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout)
			defer cancel()

			built, err := s.buildItem(itemCtx, item, seasons)
			if err != nil {
				metrics.add(ctx, metrics.itemsSkipped, attribute.String("stage", "batch"), attribute.String("reason", "error"))
				s.logger.ErrorContext(ctx, "build batch item failed",
					"match_id", item.ID,
					"league_id", item.LeagueID,
					"error", err,
				)
				return entry{}
			}
			return entry{item: built, ok: true}
		})
	}

	items := make([]BatchItem, 0, len(fixtures))
	for _, e := range p.Wait() {
		if e.ok {
			items = append(items, e.item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].KickoffAt.Equal(items[j].KickoffAt) {
			return items[i].KickoffAt.Before(items[j].KickoffAt)
		}
		return items[i].MatchID < items[j].MatchID
	})

	manifest := BatchManifest{
		Meta: BatchMeta{
			Day:         day,
			TZ:          s.clock.Location().String(),
			Count:       len(items),
			GeneratedAt: s.clock.Now().Format(time.RFC3339),
		},
		Matches: items,
	}
	body, err := sonic.Marshal(manifest)
	if err != nil {
		return BatchResult{}, fmt.Errorf("encode batch manifest: %w", err)
	}

	path := batchKey(day)
	if err := s.blobs.Put(ctx, path, body, "application/json"); err != nil {
		return BatchResult{}, fmt.Errorf("%w: write batch manifest %s: %v", ErrDependencyUnavailable, path, err)
	}
	readURL, err := s.blobs.SignedReadURL(ctx, path, s.cfg.ReadURLTTL)
	if err != nil {
		return BatchResult{}, fmt.Errorf("%w: sign batch manifest %s: %v", ErrDependencyUnavailable, path, err)
	}

	result = BatchResult{
		OK:           true,
		Day:          day,
		Count:        len(items),
		Skipped:      len(fixtures) - len(items),
		BatchPath:    path,
		BatchReadURL: readURL,
	}
	markStage(ctx, s.heartbeat, s.logger, map[string]any{
		heartbeat.FieldBatchOK:    true,
		heartbeat.FieldBatchCount: result.Count,
	})
	s.logger.InfoContext(ctx, "daily batch written",
		"day", day,
		"count", result.Count,
		"skipped", result.Skipped,
		"path", path,
	)
	return result, nil
}

func (s *BatchService) buildItem(ctx context.Context, item fixture.Fixture, seasons *seasonResolver) (BatchItem, error) {
	seasonID := item.SeasonID
	if seasonID == "" {
		resolved, err := seasons.resolve(ctx, item.LeagueID)
		if err != nil {
			return BatchItem{}, err
		}
		seasonID = resolved
	}

	replayURL, err := s.blobs.SignedWriteURL(ctx, replayKey(seasonID, item.LeagueID, item.ID), "application/json", s.cfg.WriteURLTTL)
	if err != nil {
		return BatchItem{}, fmt.Errorf("sign replay upload: %w", err)
	}
	resultURL, err := s.blobs.SignedWriteURL(ctx, resultKey(seasonID, item.LeagueID, item.ID), "application/json", s.cfg.WriteURLTTL)
	if err != nil {
		return BatchItem{}, fmt.Errorf("sign result upload: %w", err)
	}

	seed, err := s.seedFor(ctx, item)
	if err != nil {
		return BatchItem{}, err
	}
	return BatchItem{
		MatchID:         item.ID,
		LeagueID:        item.LeagueID,
		SeasonID:        seasonID,
		HomeTeamID:      item.HomeTeamID,
		AwayTeamID:      item.AwayTeamID,
		Seed:            seed,
		RequestToken:    SignRequestToken(s.cfg.Secret, item.ID, seasonID, s.clock.Now()),
		ReplayUploadURL: replayURL,
		ResultUploadURL: resultURL,
		KickoffAt:       item.KickoffAt,
	}, nil
}

// seedFor returns the seed frozen in the match plan so both dispatch paths
// simulate the same locked input. Unlocked fixtures fall back to the fixture
// seed, then to a fresh one.
func (s *BatchService) seedFor(ctx context.Context, item fixture.Fixture) (int64, error) {
	if s.planRepo != nil {
		plan, ok, err := s.planRepo.GetByMatchID(ctx, item.ID)
		if err != nil {
			return 0, fmt.Errorf("get plan: %w", err)
		}
		if ok {
			return plan.Seed, nil
		}
	}
	if item.Seed != nil {
		return *item.Seed, nil
	}
	return s.newSeed(), nil
}

// seasonResolver memoizes league seasons for one batch run; concurrent
// lookups for the same league share a single read.
type seasonResolver struct {
	repo  league.Repository
	group singleflight.Group
	mu    sync.Mutex
	cache map[string]string
}

func newSeasonResolver(repo league.Repository) *seasonResolver {
	return &seasonResolver{repo: repo, cache: make(map[string]string)}
}

func (r *seasonResolver) resolve(ctx context.Context, leagueID string) (string, error) {
	r.mu.Lock()
	if season, ok := r.cache[leagueID]; ok {
		r.mu.Unlock()
		return season, nil
	}
	r.mu.Unlock()

	v, err, _ := r.group.Do(leagueID, func() (any, error) {
		season := defaultSeasonID
		if r.repo != nil {
			item, exists, err := r.repo.GetByID(ctx, leagueID)
			if err != nil {
				return "", fmt.Errorf("get league %s: %w", leagueID, err)
			}
			if exists && item.SeasonID != "" {
				season = item.SeasonID
			}
		}
		r.mu.Lock()
		r.cache[leagueID] = season
		r.mu.Unlock()
		return season, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
