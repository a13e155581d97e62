package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/interfaces/httpapi"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// Server is the API process: the http server plus whatever it opened and
// must close on shutdown.
type Server struct {
	HTTP   *http.Server
	stores *stores
}

func (s *Server) Close() {
	if s == nil || s.stores == nil {
		return
	}
	s.stores.close()
}

func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Default()
	}

	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	clk := clock.New(loc, nil)

	mode, err := usecase.ParseDispatchMode(cfg.DispatchMode)
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	services, err := buildServices(ctx, cfg, st, clk, mode, logger)
	if err != nil {
		st.close()
		return nil, err
	}

	handler := httpapi.NewHandler(services, logger)
	router := httpapi.NewRouter(handler, httpapi.RouteSecrets{
		Lock:        cfg.LockSecret,
		Orchestrate: cfg.OrchestrateSecret,
		Start:       cfg.StartSecret,
		Results:     cfg.ResultsSecret,
		Scheduler:   cfg.SchedulerSecret,
		Batch:       cfg.BatchSecret,
	}, logger, cfg.CORSAllowedOrigins)

	logger.Info("pipeline wired",
		"store", cfg.StoreDriver,
		"blob_store", cfg.BlobDriver,
		"dispatch_mode", string(mode),
		"timezone", loc.String(),
		"qstash_enabled", cfg.QStashEnabled,
		"worker_configured", cfg.WorkerURL != "",
	)

	return &Server{
		HTTP: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		stores: st,
	}, nil
}

func buildServices(
	ctx context.Context,
	cfg config.Config,
	st *stores,
	clk clock.Clock,
	mode usecase.DispatchMode,
	logger *logging.Logger,
) (httpapi.Services, error) {
	trigger, err := newWorkerTrigger(cfg, logger)
	if err != nil {
		return httpapi.Services{}, err
	}
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return httpapi.Services{}, err
	}
	alerter, err := newAlerter(cfg, logger)
	if err != nil {
		return httpapi.Services{}, err
	}
	tasks := usecase.NewTaskScheduler(newJobQueue(cfg, logger), st.dispatches, logger)

	heartbeatSvc := usecase.NewHeartbeatService(st.heartbeats, st.fixtures, alerter, clk, usecase.HeartbeatConfig{
		RequiredStages:   cfg.HeartbeatRequiredStages,
		LongRunningAfter: cfg.LongRunningAfter,
		StaleScanLimit:   cfg.StaleScanLimit,
	}, logger)

	lockSvc := usecase.NewLockService(st.fixtures, st.plans, st.teams, heartbeatSvc, clk, usecase.LockConfig{
		Workers:     cfg.LockWorkers,
		ItemTimeout: cfg.LockItemTimeout,
	}, logger)

	dispatchSvc := usecase.NewDispatchService(
		st.fixtures,
		st.plans,
		st.teams,
		st.leagues,
		trigger,
		tasks,
		heartbeatSvc,
		clk,
		usecase.DispatchConfig{
			Mode:          mode,
			ItemTimeout:   cfg.DispatchItemTimeout,
			FinalizeDelay: cfg.FinalizeDelay,
			OverdueLimit:  cfg.OverdueLimit,
			CallbackURL:   callbackURL(cfg.PublicBaseURL),
		},
		logger,
	)

	resultSvc := usecase.NewResultService(st.committer, st.fixtures, st.leagues, blobs, alerter, clk, usecase.ResultConfig{
		StrictScore: cfg.StrictScore,
		BatchSecret: cfg.RequestTokenSecret,
		TokenMaxAge: cfg.RequestTokenMaxAge,
	}, logger)

	watchdogSvc := usecase.NewWatchdogService(st.fixtures, st.failedJobs, dispatchSvc, tasks, alerter, clk, usecase.WatchdogConfig{
		MaxRetries: cfg.FinalizeMaxRetries,
		Delay:      cfg.FinalizeDelay,
	}, logger)

	batchSvc := usecase.NewBatchService(st.fixtures, st.plans, st.leagues, blobs, heartbeatSvc, clk, usecase.BatchConfig{
		Secret:      cfg.RequestTokenSecret,
		Workers:     cfg.BatchWorkers,
		ItemTimeout: cfg.BatchItemTimeout,
		WriteURLTTL: cfg.BatchWriteURLTTL,
		ReadURLTTL:  cfg.BatchReadURLTTL,
	}, logger)

	return httpapi.Services{
		Lock:       lockSvc,
		Dispatch:   dispatchSvc,
		Results:    resultSvc,
		Watchdog:   watchdogSvc,
		Heartbeat:  heartbeatSvc,
		Batch:      batchSvc,
		Schedule:   usecase.NewScheduleService(st.leagues, st.teams, st.fixtures, clk, logger),
		Standings:  usecase.NewStandingsService(st.leagues, st.standings),
		Dispatches: tasks,
	}, nil
}

func callbackURL(publicBaseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/v1/internal/results/report"
}
