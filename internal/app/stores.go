package app

import (
	"context"
	"fmt"

	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/failedjob"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchresult"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
	"github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/postgres"
	redisrepo "github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/redis"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

type stores struct {
	fixtures   fixture.Repository
	plans      matchplan.Repository
	teams      team.Repository
	leagues    league.Repository
	standings  leaguestanding.Repository
	failedJobs failedjob.Repository
	heartbeats heartbeat.Repository
	dispatches jobscheduler.Repository
	committer  matchresult.Committer

	closers []func() error
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *logging.Logger) (*stores, error) {
	var (
		out *stores
		err error
	)
	switch cfg.StoreDriver {
	case config.StorePostgres:
		out, err = openPostgresStores(ctx, cfg, logger)
	default:
		out = openMemoryStores()
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		client, err := redisrepo.NewClient(cfg.RedisURL)
		if err != nil {
			out.close()
			return nil, err
		}
		if err := redisrepo.Ping(ctx, client); err != nil {
			_ = client.Close()
			out.close()
			return nil, err
		}
		out.heartbeats = redisrepo.NewHeartbeatRepository(client)
		out.closers = append(out.closers, client.Close)
		logger.Info("heartbeat store: redis")
	}

	return out, nil
}

func openMemoryStores() *stores {
	store := memory.NewSeededStore()
	return &stores{
		fixtures:   memory.NewFixtureRepository(store),
		plans:      memory.NewMatchPlanRepository(store),
		teams:      memory.NewTeamRepository(store),
		leagues:    memory.NewLeagueRepository(store),
		standings:  memory.NewLeagueStandingRepository(store),
		failedJobs: memory.NewFailedJobRepository(store),
		heartbeats: memory.NewHeartbeatRepository(store),
		dispatches: memory.NewJobDispatchRepository(store),
		committer:  memory.NewResultCommitter(store),
	}
}

func openPostgresStores(ctx context.Context, cfg config.Config, logger *logging.Logger) (*stores, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if cfg.DBSeedEnabled {
		if err := postgres.BootstrapSeed(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap seed: %w", err)
		}
		logger.Info("db seed applied")
	}

	return &stores{
		fixtures:   postgres.NewFixtureRepository(db),
		plans:      postgres.NewMatchPlanRepository(db),
		teams:      postgres.NewTeamRepository(db),
		leagues:    postgres.NewLeagueRepository(db),
		standings:  postgres.NewLeagueStandingRepository(db),
		failedJobs: postgres.NewFailedJobRepository(db),
		heartbeats: postgres.NewHeartbeatRepository(db),
		dispatches: postgres.NewJobDispatchRepository(db),
		committer:  postgres.NewResultCommitter(db),
		closers:    []func() error{db.Close},
	}, nil
}
