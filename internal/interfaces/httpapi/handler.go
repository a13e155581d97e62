package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

type LineupLocker interface {
	LockWindowSnapshot(ctx context.Context) (usecase.LockResult, error)
}

type MatchDispatcher interface {
	StartMatch(ctx context.Context, input usecase.StartMatchInput) (usecase.StartMatchResult, error)
	DispatchTonight(ctx context.Context) (usecase.OrchestrateResult, error)
}

type ResultIngester interface {
	Report(ctx context.Context, input usecase.ReportInput) (usecase.ReportResult, error)
	IngestStoredResult(ctx context.Context, key string) (usecase.IngestResult, error)
}

type MatchFinalizer interface {
	Finalize(ctx context.Context, input usecase.FinalizeInput) (usecase.FinalizeResult, error)
}

type HeartbeatMonitor interface {
	Get(ctx context.Context, day string) (heartbeat.Heartbeat, error)
	RunWatchdog(ctx context.Context) (usecase.HealthReport, error)
}

type DailyBatcher interface {
	CreateDailyBatch(ctx context.Context, day string) (usecase.BatchResult, error)
}

type SeasonScheduler interface {
	GenerateSeason(ctx context.Context, input usecase.GenerateSeasonInput) (usecase.GenerateSeasonResult, error)
}

type StandingsReader interface {
	ListByLeague(ctx context.Context, leagueID string) ([]leaguestanding.Standing, error)
}

// DispatchRecorder stores the outcome of queue-delivered calls.
type DispatchRecorder interface {
	RecordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent)
}

// Services groups the usecases the router serves. Nil members answer 503.
type Services struct {
	Lock       LineupLocker
	Dispatch   MatchDispatcher
	Results    ResultIngester
	Watchdog   MatchFinalizer
	Heartbeat  HeartbeatMonitor
	Batch      DailyBatcher
	Schedule   SeasonScheduler
	Standings  StandingsReader
	Dispatches DispatchRecorder
}

type Handler struct {
	services  Services
	logger    *logging.Logger
	validator *validator.Validate
}

func NewHandler(services Services, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		services:  services,
		logger:    logger,
		validator: validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := handlerSpan(r.Context(), "Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]any{"ok": true, "status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, req any) error {
	if err := h.validator.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func notConfigured(name string) error {
	return fmt.Errorf("%w: %s is not configured", usecase.ErrDependencyUnavailable, name)
}
