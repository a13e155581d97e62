package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/external/jobqueue"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	mu sync.Mutex

	startInputs    []usecase.StartMatchInput
	startErr       error
	finalizeInputs []usecase.FinalizeInput
	reports        []usecase.ReportInput
	ingestedKeys   []string
	batchDays      []string
	seasons        []usecase.GenerateSeasonInput
	events         []jobscheduler.DispatchEvent
	standings      []leaguestanding.Standing
	health         *usecase.HealthReport
}

func (f *fakePipeline) LockWindowSnapshot(context.Context) (usecase.LockResult, error) {
	return usecase.LockResult{OK: true, Day: "2026-10-15", MatchesConsidered: 2, PlansCreated: 2}, nil
}

func (f *fakePipeline) StartMatch(_ context.Context, input usecase.StartMatchInput) (usecase.StartMatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startInputs = append(f.startInputs, input)
	if f.startErr != nil {
		return usecase.StartMatchResult{}, f.startErr
	}
	return usecase.StartMatchResult{OK: true, MatchID: input.MatchID, LeagueID: input.LeagueID, Dispatched: true}, nil
}

func (f *fakePipeline) DispatchTonight(context.Context) (usecase.OrchestrateResult, error) {
	return usecase.OrchestrateResult{OK: true, Day: "2026-10-15", Mode: usecase.DispatchModeSerial}, nil
}

func (f *fakePipeline) Report(_ context.Context, input usecase.ReportInput) (usecase.ReportResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, input)
	return usecase.ReportResult{OK: true, MatchID: input.MatchID, LeagueID: input.LeagueID, Applied: true}, nil
}

func (f *fakePipeline) IngestStoredResult(_ context.Context, key string) (usecase.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingestedKeys = append(f.ingestedKeys, key)
	return usecase.IngestResult{ReportResult: usecase.ReportResult{OK: true}, Key: key}, nil
}

func (f *fakePipeline) Finalize(_ context.Context, input usecase.FinalizeInput) (usecase.FinalizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizeInputs = append(f.finalizeInputs, input)
	return usecase.FinalizeResult{OK: true, MatchID: input.MatchID, LeagueID: input.LeagueID, Attempt: input.Attempt}, nil
}

func (f *fakePipeline) Get(_ context.Context, day string) (heartbeat.Heartbeat, error) {
	if day == "" {
		day = "2026-10-15"
	}
	return heartbeat.Heartbeat{
		Day:         day,
		Fields:      map[string]any{heartbeat.FieldLockOK: true},
		LastUpdated: time.Date(2026, 10, 15, 15, 30, 0, 0, time.UTC),
	}, nil
}

func (f *fakePipeline) RunWatchdog(context.Context) (usecase.HealthReport, error) {
	if f.health != nil {
		return *f.health, nil
	}
	return usecase.HealthReport{OK: true, Day: "2026-10-15"}, nil
}

func (f *fakePipeline) CreateDailyBatch(_ context.Context, day string) (usecase.BatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchDays = append(f.batchDays, day)
	return usecase.BatchResult{OK: true, Day: day}, nil
}

func (f *fakePipeline) GenerateSeason(_ context.Context, input usecase.GenerateSeasonInput) (usecase.GenerateSeasonResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seasons = append(f.seasons, input)
	return usecase.GenerateSeasonResult{OK: true, LeagueID: input.LeagueID}, nil
}

func (f *fakePipeline) ListByLeague(_ context.Context, leagueID string) ([]leaguestanding.Standing, error) {
	if leagueID == "missing" {
		return nil, fmt.Errorf("%w: league missing", usecase.ErrNotFound)
	}
	return f.standings, nil
}

func (f *fakePipeline) RecordDispatchEvent(_ context.Context, event jobscheduler.DispatchEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func newTestRouter(t *testing.T, secrets RouteSecrets) (http.Handler, *fakePipeline) {
	t.Helper()

	fake := &fakePipeline{}
	handler := NewHandler(Services{
		Lock:       fake,
		Dispatch:   fake,
		Results:    fake,
		Watchdog:   fake,
		Heartbeat:  fake,
		Batch:      fake,
		Schedule:   fake,
		Standings:  fake,
		Dispatches: fake,
	}, logging.NewNop())
	return NewRouter(handler, secrets, logging.NewNop(), nil), fake
}

func doRequest(router http.Handler, method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestInternalRoutesRequireBearer(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, RouteSecrets{Orchestrate: "orch-secret"})

	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/orchestrate", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])

	rec = doRequest(router, http.MethodPost, "/v1/internal/matches/orchestrate", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/internal/matches/orchestrate", "orch-secret", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])
}

func TestInternalRoutesRejectUnconfiguredSecret(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, RouteSecrets{})
	rec := doRequest(router, http.MethodPost, "/v1/internal/results/report", "", `{}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusUnauthorized)
	}
}

func TestSecretFallbackGroups(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secrets RouteSecrets
		path    string
		token   string
		want    int
	}{
		{name: "lock uses scheduler", secrets: RouteSecrets{Scheduler: "sched"}, path: "/v1/internal/lineups/lock", token: "sched", want: http.StatusOK},
		{name: "lock uses orchestrate", secrets: RouteSecrets{Orchestrate: "orch"}, path: "/v1/internal/lineups/lock", token: "orch", want: http.StatusOK},
		{name: "lock secret wins", secrets: RouteSecrets{Lock: "lock", Scheduler: "sched"}, path: "/v1/internal/lineups/lock", token: "sched", want: http.StatusUnauthorized},
		{name: "batch uses scheduler", secrets: RouteSecrets{Scheduler: "sched"}, path: "/v1/internal/batches/daily", token: "sched", want: http.StatusOK},
		{name: "watchdog uses orchestrate", secrets: RouteSecrets{Orchestrate: "orch"}, path: "/v1/internal/heartbeat/watchdog", token: "orch", want: http.StatusOK},
		{name: "orchestrate has no fallback", secrets: RouteSecrets{Scheduler: "sched"}, path: "/v1/internal/matches/orchestrate", token: "sched", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, _ := newTestRouter(t, tt.secrets)
			rec := doRequest(router, http.MethodPost, tt.path, tt.token, "")
			if rec.Code != tt.want {
				t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestStartMatchAcceptsForwardedJobToken(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Start: "start-secret"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/start", "",
		`{"matchId":"m1","leagueId":"l1","dispatchId":"start_match-l1-m1"}`,
		jobqueue.HeaderInternalJobToken, "start-secret",
		HeaderQStashMessageID, "msg_123",
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, fake.startInputs, 1)
	assert.Equal(t, usecase.StartMatchInput{MatchID: "m1", LeagueID: "l1"}, fake.startInputs[0])

	require.Len(t, fake.events, 1)
	event := fake.events[0]
	assert.Equal(t, "start_match-l1-m1", event.DispatchID)
	assert.Equal(t, jobscheduler.StatusCompleted, event.Status)
	assert.Equal(t, usecase.PathStartMatch, event.JobPath)
	assert.Equal(t, "msg_123", event.Payload["messageId"])
}

func TestStartMatchRecordsFailedDispatch(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Start: "s"})
	fake.startErr = fmt.Errorf("%w: match plan missing", usecase.ErrNotFound)

	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/start", "s",
		`{"matchId":"m1","leagueId":"l1"}`,
		HeaderQStashMessageID, "msg/42",
	)
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, fake.events, 1)
	assert.Equal(t, jobscheduler.StatusFailed, fake.events[0].Status)
	assert.Equal(t, "queued-start_match-msg-42", fake.events[0].DispatchID)
	assert.Contains(t, fake.events[0].ErrorMessage, "match plan missing")
}

func TestStartMatchWithoutQueueHeaderSkipsAudit(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Start: "s"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/start", "s", `{"matchId":"m1","leagueId":"l1","forceRedispatch":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, fake.events)
	assert.True(t, fake.startInputs[0].ForceRedispatch)
}

func TestStartMatchValidation(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Start: "s"})

	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/start", "s", `{"matchId":"m1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/internal/matches/start", "s", `{"matchId":"m1","leagueId":"l1","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/internal/matches/start", "s", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, fake.startInputs)
}

func TestFinalizeWatchdogPassesAttempt(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Start: "s"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/matches/finalize-watchdog", "s", `{"matchId":"m1","leagueId":"l1","attempt":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.finalizeInputs, 1)
	assert.Equal(t, 2, fake.finalizeInputs[0].Attempt)

	rec = doRequest(router, http.MethodPost, "/v1/internal/matches/finalize-watchdog", "s", `{"matchId":"m1","leagueId":"l1","attempt":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReportResultForwardsPayload(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Results: "r"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/results/report", "r",
		`{"matchId":"m1","leagueId":"l1","seasonId":"2026","score":{"home":2,"away":1},"replay":{"path":"replays/2026/l1/m1.json"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, fake.reports, 1)
	input := fake.reports[0]
	assert.Equal(t, "m1", input.MatchID)
	assert.Equal(t, "l1", input.LeagueID)
	assert.Equal(t, "2026", input.SeasonID)
	score, ok := input.Payload["score"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, score["home"])
}

func TestFinalizeStoredResultDecodesS3Event(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Results: "r"})
	body := `{"Records":[
		{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"matchday"},"object":{"key":"results/2026/l1/m%201.json"}}},
		{"eventName":"ObjectRemoved:Delete","s3":{"object":{"key":"results/2026/l1/m2.json"}}}
	]}`
	rec := doRequest(router, http.MethodPost, "/v1/internal/results/finalize", "r", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"results/2026/l1/m 1.json"}, fake.ingestedKeys)
}

func TestFinalizeStoredResultAcceptsBareKey(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Results: "r"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/results/finalize", "r", `{"key":"results/2026/l1/m1.json"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"results/2026/l1/m1.json"}, fake.ingestedKeys)

	rec = doRequest(router, http.MethodPost, "/v1/internal/results/finalize", "r", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHeartbeat(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, RouteSecrets{Scheduler: "sched"})
	rec := doRequest(router, http.MethodGet, "/v1/internal/heartbeat?day=2026-10-14", "sched", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "2026-10-14", body["day"])
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, fields[heartbeat.FieldLockOK])
	assert.Equal(t, "2026-10-15T15:30:00Z", body["lastUpdated"])
}

func TestHeartbeatWatchdogStatus(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Scheduler: "sched"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/heartbeat/watchdog", "sched", "")
	require.Equal(t, http.StatusOK, rec.Code)

	fake.health = &usecase.HealthReport{Day: "2026-10-15", Problems: []string{"lockOk", "orchestrateOk|batchOk"}}
	rec = doRequest(router, http.MethodPost, "/v1/internal/heartbeat/watchdog", "sched", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, []any{"lockOk", "orchestrateOk|batchOk"}, body["problems"])
}

func TestCreateDailyBatchValidatesDate(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Batch: "b"})

	rec := doRequest(router, http.MethodPost, "/v1/internal/batches/daily", "b", `{"date":"15-10-2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/internal/batches/daily", "b", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodPost, "/v1/internal/batches/daily", "b", `{"date":"2026-10-16"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"", "2026-10-16"}, fake.batchDays)
}

func TestGenerateSeasonUsesPathLeague(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{Scheduler: "sched"})
	rec := doRequest(router, http.MethodPost, "/v1/internal/leagues/super-lig/schedule", "sched", `{"startDate":"2026-11-01"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fake.seasons, 1)
	assert.Equal(t, usecase.GenerateSeasonInput{LeagueID: "super-lig", StartDate: "2026-11-01"}, fake.seasons[0])
}

func TestListLeagueStandingsIsPublic(t *testing.T) {
	t.Parallel()

	router, fake := newTestRouter(t, RouteSecrets{})
	fake.standings = []leaguestanding.Standing{
		{LeagueID: "l1", TeamID: "t1", Name: "Atlas", Played: 1, Won: 1, GoalsFor: 2, GoalsAgainst: 1, GoalDifference: 1, Points: 3},
		{LeagueID: "l1", TeamID: "t2", Name: "Boreas", Played: 1, Lost: 1, GoalsFor: 1, GoalsAgainst: 2, GoalDifference: -1},
	}

	rec := doRequest(router, http.MethodGet, "/v1/leagues/l1/standings", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body standingsResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Standings, 2)
	assert.Equal(t, 1, body.Standings[0].Position)
	assert.Equal(t, "t1", body.Standings[0].TeamID)
	assert.Equal(t, 3, body.Standings[0].Points)

	rec = doRequest(router, http.MethodGet, "/v1/leagues/missing/standings", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoverPanicWritesInternalError(t *testing.T) {
	t.Parallel()

	handler := recoverPanic(logging.NewNop(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(errors.New("boom"))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t, RouteSecrets{})
	rec := doRequest(router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["ok"])
}
