package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchresult"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"go.opentelemetry.io/otel/attribute"
)

const (
	resultSourceCallback = "callback"
	resultSourceStorage  = "storage"
)

type ResultConfig struct {
	// StrictScore rejects unparseable scores instead of recording 0-0.
	StrictScore bool
	// BatchSecret, when set, makes a valid requestToken mandatory on
	// stored results.
	BatchSecret string
	TokenMaxAge time.Duration
}

type ReportInput struct {
	MatchID    string
	LeagueID   string
	SeasonID   string
	ReplayPath string
	Payload    map[string]any
}

type ReportResult struct {
	OK             bool           `json:"ok"`
	MatchID        string         `json:"matchId"`
	LeagueID       string         `json:"leagueId"`
	Applied        bool           `json:"applied"`
	Status         fixture.Status `json:"status"`
	Score          fixture.Score  `json:"score"`
	ScoreDefaulted bool           `json:"scoreDefaulted,omitempty"`
	ReplayPath     string         `json:"replayPath"`
}

type IngestResult struct {
	ReportResult
	Key     string `json:"key"`
	Ignored bool   `json:"ignored,omitempty"`
}

type ResultService struct {
	committer   matchresult.Committer
	fixtureRepo fixture.Repository
	leagueRepo  league.Repository
	blobs       BlobStore
	alerter     Alerter
	clock       clock.Clock
	cfg         ResultConfig
	logger      *logging.Logger
}

func NewResultService(
	committer matchresult.Committer,
	fixtureRepo fixture.Repository,
	leagueRepo league.Repository,
	blobs BlobStore,
	alerter Alerter,
	clk clock.Clock,
	cfg ResultConfig,
	logger *logging.Logger,
) *ResultService {
	if alerter == nil {
		alerter = noopAlerter{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ResultService{
		committer:   committer,
		fixtureRepo: fixtureRepo,
		leagueRepo:  leagueRepo,
		blobs:       blobs,
		alerter:     alerter,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

// Report handles the worker's HTTP callback.
func (s *ResultService) Report(ctx context.Context, input ReportInput) (result ReportResult, err error) {
	input.MatchID = strings.TrimSpace(input.MatchID)
	input.LeagueID = strings.TrimSpace(input.LeagueID)
	input.SeasonID = strings.TrimSpace(input.SeasonID)
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.Report", matchAttrs(input.LeagueID, input.MatchID)...)
	defer func() { endSpan(span, err) }()

	if input.MatchID == "" || input.LeagueID == "" || input.SeasonID == "" {
		return ReportResult{}, fmt.Errorf("%w: leagueId, matchId and seasonId are required", ErrInvalidInput)
	}

	replayPath := strings.TrimSpace(input.ReplayPath)
	if replayPath == "" {
		replayPath = explicitReplayPath(input.Payload)
	}
	if replayPath == "" {
		replayPath = replayKey(input.SeasonID, input.LeagueID, input.MatchID)
	}
	return s.commit(ctx, resultRef{SeasonID: input.SeasonID, LeagueID: input.LeagueID, MatchID: input.MatchID}, input.Payload, replayPath, resultSourceCallback)
}

// IngestStoredResult handles a result blob landing in storage. Keys
// outside results/{season}/{league}/{match}.json are ignored.
func (s *ResultService) IngestStoredResult(ctx context.Context, key string) (result IngestResult, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ResultService.IngestStoredResult", attribute.String("object.key", key))
	defer func() { endSpan(span, err) }()

	ref, ok := parseResultKey(key)
	if !ok {
		s.logger.InfoContext(ctx, "ignore stored object outside results", "key", key)
		return IngestResult{ReportResult: ReportResult{OK: true}, Key: key, Ignored: true}, nil
	}
	result.Key = key

	defer func() {
		if err != nil {
			s.alertIngestFailure(ctx, key, ref, err)
		}
	}()

	if s.blobs == nil {
		return result, fmt.Errorf("%w: blob store not configured", ErrDependencyUnavailable)
	}
	body, err := s.blobs.Get(ctx, key)
	if err != nil {
		return result, fmt.Errorf("%w: read result %s: %v", ErrDependencyUnavailable, key, err)
	}
	var payload map[string]any
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return result, fmt.Errorf("%w: decode result %s: %v", ErrInvalidInput, key, err)
	}

	if s.cfg.BatchSecret != "" {
		token, _ := payload["requestToken"].(string)
		if token == "" {
			return result, fmt.Errorf("%w: requestToken missing in result payload", ErrUnauthorized)
		}
		if err := VerifyRequestToken(s.cfg.BatchSecret, token, ref.MatchID, ref.SeasonID, s.clock.Now(), s.cfg.TokenMaxAge); err != nil {
			return result, err
		}
	}

	replayPath, err := s.resolveReplayPath(ctx, ref, payload)
	if err != nil {
		return result, err
	}
	report, err := s.commit(ctx, ref, payload, replayPath, resultSourceStorage)
	if err != nil {
		return result, err
	}
	result.ReportResult = report
	return result, nil
}

func (s *ResultService) commit(ctx context.Context, ref resultRef, payload map[string]any, replayPath, source string) (ReportResult, error) {
	score, parsed := fixture.NormalizeScore(payload)
	if !parsed {
		if s.cfg.StrictScore {
			return ReportResult{}, fmt.Errorf("%w: score missing or unparseable for match=%s", ErrInvalidInput, ref.MatchID)
		}
		s.logger.WarnContext(ctx, "score missing or unparseable, recording 0-0",
			"match_id", ref.MatchID,
			"league_id", ref.LeagueID,
			"source", source,
		)
	}

	outcome, err := s.committer.Commit(ctx, matchresult.Report{
		LeagueID:   ref.LeagueID,
		MatchID:    ref.MatchID,
		SeasonID:   ref.SeasonID,
		Score:      score,
		ReplayPath: replayPath,
		Source:     source,
		ReceivedAt: s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, matchresult.ErrFixtureMissing) {
			return ReportResult{}, fmt.Errorf("%w: fixture league=%s match=%s", ErrNotFound, ref.LeagueID, ref.MatchID)
		}
		return ReportResult{}, fmt.Errorf("commit result match=%s: %w", ref.MatchID, err)
	}

	result := ReportResult{
		OK:             true,
		MatchID:        ref.MatchID,
		LeagueID:       ref.LeagueID,
		Applied:        outcome.Applied,
		Status:         outcome.Fixture.Status,
		Score:          score,
		ScoreDefaulted: !parsed,
		ReplayPath:     replayPath,
	}
	switch {
	case outcome.Applied:
		metrics.add(ctx, metrics.results, attribute.String("outcome", "applied"), attribute.String("source", source))
		s.logger.InfoContext(ctx, "result committed",
			"match_id", ref.MatchID,
			"league_id", ref.LeagueID,
			"home_goals", score.Home,
			"away_goals", score.Away,
			"source", source,
		)
		s.completeLeagueIfDone(ctx, ref.LeagueID)
	case outcome.PreviousStatus == fixture.StatusFailed:
		metrics.add(ctx, metrics.results, attribute.String("outcome", "ignored_failed"), attribute.String("source", source))
		s.logger.WarnContext(ctx, "result arrived for failed fixture, ignored",
			"match_id", ref.MatchID,
			"league_id", ref.LeagueID,
			"source", source,
		)
		result.Score = fixture.Score{}
		if outcome.Fixture.Score != nil {
			result.Score = *outcome.Fixture.Score
		}
	default:
		metrics.add(ctx, metrics.results, attribute.String("outcome", "duplicate"), attribute.String("source", source))
		if outcome.Fixture.Score != nil {
			result.Score = *outcome.Fixture.Score
		}
		result.ReplayPath = outcome.Fixture.ReplayPath
		result.ScoreDefaulted = false
	}
	return result, nil
}

func (s *ResultService) completeLeagueIfDone(ctx context.Context, leagueID string) {
	if s.leagueRepo == nil || s.fixtureRepo == nil {
		return
	}
	open, err := s.fixtureRepo.CountOpenByLeague(ctx, leagueID)
	if err != nil {
		s.logger.WarnContext(ctx, "count open fixtures failed", "league_id", leagueID, "error", err)
		return
	}
	if open > 0 {
		return
	}
	changed, err := s.leagueRepo.CompareAndSetState(ctx, leagueID, league.StateActive, league.StateCompleted)
	if err != nil {
		s.logger.WarnContext(ctx, "complete league failed", "league_id", leagueID, "error", err)
		return
	}
	if changed {
		s.logger.InfoContext(ctx, "league completed", "league_id", leagueID)
	}
}

func (s *ResultService) resolveReplayPath(ctx context.Context, ref resultRef, payload map[string]any) (string, error) {
	if explicit := explicitReplayPath(payload); explicit != "" {
		return explicit, nil
	}
	jsonPath := replayKey(ref.SeasonID, ref.LeagueID, ref.MatchID)
	gzPath := jsonPath + ".gz"
	hasGz, err := s.blobs.Exists(ctx, gzPath)
	if err != nil {
		s.logger.WarnContext(ctx, "check compressed replay failed, using plain path",
			"match_id", ref.MatchID,
			"key", gzPath,
			"error", err,
		)
		return jsonPath, nil
	}
	if hasGz {
		return gzPath, nil
	}
	return jsonPath, nil
}

func (s *ResultService) alertIngestFailure(ctx context.Context, key string, ref resultRef, cause error) {
	s.logger.ErrorContext(ctx, "ingest stored result failed",
		"key", key,
		"match_id", ref.MatchID,
		"league_id", ref.LeagueID,
		"error", cause,
	)
	alert := Alert{
		Severity: SeverityCritical,
		Title:    "Result ingestion failed",
		Message:  cause.Error(),
		Fields: map[string]string{
			"key":      key,
			"matchId":  ref.MatchID,
			"leagueId": ref.LeagueID,
			"seasonId": ref.SeasonID,
		},
	}
	if err := s.alerter.Alert(ctx, alert); err != nil {
		s.logger.WarnContext(ctx, "send ingest alert failed", "key", key, "error", err)
	}
}

// explicitReplayPath reads replay.path, falling back to replayPath.
func explicitReplayPath(payload map[string]any) string {
	if replay, ok := payload["replay"].(map[string]any); ok {
		if p, ok := replay["path"].(string); ok && strings.TrimSpace(p) != "" {
			return strings.TrimSpace(p)
		}
	}
	if p, ok := payload["replayPath"].(string); ok {
		return strings.TrimSpace(p)
	}
	return ""
}
