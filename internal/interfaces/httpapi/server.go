package httpapi

import (
	"net/http"

	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
)

// RouteSecrets holds the bearer secrets per route group. Empty groups fall
// back to the broader ones listed in each accessor.
type RouteSecrets struct {
	Lock        string
	Orchestrate string
	Start       string
	Results     string
	Scheduler   string
	Batch       string
}

func (s RouteSecrets) LockGroup() []string {
	return firstConfigured(s.Lock, s.Scheduler, s.Orchestrate)
}

func (s RouteSecrets) OrchestrateGroup() []string {
	return firstConfigured(s.Orchestrate)
}

func (s RouteSecrets) StartGroup() []string {
	return firstConfigured(s.Start, s.Orchestrate)
}

func (s RouteSecrets) ResultsGroup() []string {
	return firstConfigured(s.Results)
}

func (s RouteSecrets) SchedulerGroup() []string {
	return firstConfigured(s.Scheduler, s.Orchestrate)
}

func (s RouteSecrets) BatchGroup() []string {
	return firstConfigured(s.Batch, s.Scheduler)
}

// firstConfigured returns the first non-empty secret as the accepted set.
func firstConfigured(candidates ...string) []string {
	for _, candidate := range candidates {
		if candidate != "" {
			return []string{candidate}
		}
	}
	return nil
}

func NewRouter(
	handler *Handler,
	secrets RouteSecrets,
	logger *logging.Logger,
	corsAllowedOrigins []string,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerPublicRoutes(mux, handler)
	registerInternalRoutes(mux, handler, secrets)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec, "path", r.URL.Path)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
