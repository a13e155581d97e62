package observability

import (
	"context"
	"strings"

	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
)

// startTracing installs the global trace and metric providers. Pipeline
// counters in usecase export through the same DSN.
func startTracing(cfg config.Config, logger *logging.Logger) (func(context.Context) error, error) {
	dsn := strings.TrimSpace(cfg.UptraceDSN)
	switch {
	case !cfg.UptraceEnabled:
		logger.Info("tracing off", "component", Tracing.String())
		return nil, nil
	case dsn == "":
		logger.Warn("tracing off, dsn not set", "component", Tracing.String())
		return nil, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(dsn),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
	)
	logger.Info("tracing on", "component", Tracing.String(), "environment", cfg.AppEnv)
	return uptrace.Shutdown, nil
}
