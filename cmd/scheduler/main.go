package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/riskibarqy/matchday-pipeline/internal/config"
	redisrepo "github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/redis"
	"github.com/riskibarqy/matchday-pipeline/internal/interfaces/httpapi"
	"github.com/riskibarqy/matchday-pipeline/internal/observability"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/clock"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/id"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/scheduler"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.NewJSON(cfg.LogLevel).With("service", cfg.ServiceName+"-scheduler", "env", cfg.AppEnv)
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("scheduler failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetry, err := observability.Start(ctx, cfg, logger, observability.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = telemetry.Shutdown(context.Background()) }()

	loc, err := clock.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	var leader scheduler.Leader
	if cfg.RedisURL != "" {
		client, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := redisrepo.Ping(ctx, client); err != nil {
			return err
		}

		suffix, err := id.NewULIDGenerator().NewID()
		if err != nil {
			return err
		}
		instanceID := cfg.SchedulerInstanceID + "-" + suffix
		leader = redisrepo.NewLeaderLock(client, cfg.SchedulerLeaderKey, instanceID, cfg.SchedulerLeaderTTL)
		logger.Info("leader election enabled", "key", cfg.SchedulerLeaderKey, "instance_id", instanceID)
	} else {
		logger.Warn("REDIS_URL not set, scheduler runs without leader election")
	}

	secrets := httpapi.RouteSecrets{
		Lock:        cfg.LockSecret,
		Orchestrate: cfg.OrchestrateSecret,
		Start:       cfg.StartSecret,
		Results:     cfg.ResultsSecret,
		Scheduler:   cfg.SchedulerSecret,
		Batch:       cfg.BatchSecret,
	}
	jobs := scheduler.DailyJobs(scheduler.Secrets{
		Lock:        first(secrets.LockGroup()),
		Batch:       first(secrets.BatchGroup()),
		Orchestrate: first(secrets.OrchestrateGroup()),
		Heartbeat:   first(secrets.SchedulerGroup()),
	})

	runner, err := scheduler.NewRunner(scheduler.Config{
		BaseURL:  cfg.SchedulerAPIBaseURL,
		Location: loc,
	}, jobs, leader, logger)
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
