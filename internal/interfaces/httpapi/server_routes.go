package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerPublicRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/leagues/{leagueID}/standings", handler.ListLeagueStandings)
}

func registerInternalRoutes(mux *http.ServeMux, handler *Handler, secrets RouteSecrets) {
	guard := func(group []string, fn http.HandlerFunc) http.Handler {
		return RequireBearerToken(group, fn)
	}

	mux.Handle("POST /v1/internal/lineups/lock", guard(secrets.LockGroup(), handler.LockLineups))
	mux.Handle("POST /v1/internal/matches/orchestrate", guard(secrets.OrchestrateGroup(), handler.OrchestrateTonight))
	mux.Handle("POST /v1/internal/matches/start", guard(secrets.StartGroup(), handler.StartMatch))
	mux.Handle("POST /v1/internal/matches/finalize-watchdog", guard(secrets.StartGroup(), handler.FinalizeWatchdog))

	mux.Handle("POST /v1/internal/results/report", guard(secrets.ResultsGroup(), handler.ReportResult))
	mux.Handle("POST /v1/internal/results/finalize", guard(secrets.ResultsGroup(), handler.FinalizeStoredResult))

	mux.Handle("POST /v1/internal/heartbeat/watchdog", guard(secrets.SchedulerGroup(), handler.RunHeartbeatWatchdog))
	mux.Handle("GET /v1/internal/heartbeat", guard(secrets.SchedulerGroup(), handler.GetHeartbeat))
	mux.Handle("POST /v1/internal/batches/daily", guard(secrets.BatchGroup(), handler.CreateDailyBatch))
	mux.Handle("POST /v1/internal/leagues/{leagueID}/schedule", guard(secrets.SchedulerGroup(), handler.GenerateSeason))
}
