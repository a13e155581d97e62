package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeader struct {
	mu       sync.Mutex
	grant    bool
	err      error
	released bool
}

func (f *fakeLeader) Acquire(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.grant, f.err
}

func (f *fakeLeader) Release(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func (f *fakeLeader) TTL() time.Duration { return 30 * time.Millisecond }

type recordedCall struct {
	path string
	auth string
}

func newRecordingServer(t *testing.T, statuses ...int) (*httptest.Server, func() []recordedCall) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []recordedCall
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, recordedCall{path: r.URL.Path, auth: r.Header.Get("Authorization")})
		status := statuses[len(statuses)-1]
		if len(calls) <= len(statuses) {
			status = statuses[len(calls)-1]
		}
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedCall {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedCall(nil), calls...)
	}
}

func TestDailyJobsFireAtLocalWallClock(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("TRT", 3*60*60)
	from := time.Date(2026, 3, 1, 12, 0, 0, 0, loc)
	want := map[string]string{
		"lock-lineups":       "18:30",
		"daily-batch":        "18:45",
		"orchestrate":        "19:00",
		"heartbeat-watchdog": "23:30",
	}

	for _, job := range DailyJobs(Secrets{}) {
		schedule, err := cron.ParseStandard(job.Spec)
		require.NoError(t, err, job.Name)
		next := schedule.Next(from.In(loc))
		assert.Equal(t, want[job.Name], next.In(loc).Format("15:04"), job.Name)
	}
}

func TestRunnerFirePostsWithBearer(t *testing.T) {
	t.Parallel()

	srv, calls := newRecordingServer(t, http.StatusOK)
	runner, err := NewRunner(Config{BaseURL: srv.URL + "/"}, nil, nil, logging.NewNop())
	require.NoError(t, err)

	runner.fire(context.Background(), Job{Name: "orchestrate", Path: "/v1/internal/matches/orchestrate", Secret: "orch"})

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/v1/internal/matches/orchestrate", got[0].path)
	assert.Equal(t, "Bearer orch", got[0].auth)
}

func TestRunnerFireRetriesGatewayErrors(t *testing.T) {
	t.Parallel()

	srv, calls := newRecordingServer(t, http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusOK)
	runner, err := NewRunner(Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond}, nil, nil, logging.NewNop())
	require.NoError(t, err)

	runner.fire(context.Background(), Job{Name: "daily-batch", Path: "/v1/internal/batches/daily"})
	assert.Len(t, calls(), 3)
}

func TestRunnerFireDoesNotRetryStageFailures(t *testing.T) {
	t.Parallel()

	srv, calls := newRecordingServer(t, http.StatusInternalServerError)
	runner, err := NewRunner(Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond}, nil, nil, logging.NewNop())
	require.NoError(t, err)

	runner.fire(context.Background(), Job{Name: "heartbeat-watchdog", Path: "/v1/internal/heartbeat/watchdog"})
	assert.Len(t, calls(), 1)
}

func TestRunnerFireGivesUpAfterRetryAttempts(t *testing.T) {
	t.Parallel()

	srv, calls := newRecordingServer(t, http.StatusGatewayTimeout)
	runner, err := NewRunner(Config{BaseURL: srv.URL, RetryAttempts: 2, RetryBaseDelay: time.Millisecond}, nil, nil, logging.NewNop())
	require.NoError(t, err)

	runner.fire(context.Background(), Job{Name: "orchestrate", Path: "/v1/internal/matches/orchestrate"})
	assert.Len(t, calls(), 2)
}

func TestRunnerSkipsWhenNotLeader(t *testing.T) {
	t.Parallel()

	srv, calls := newRecordingServer(t, http.StatusOK)
	leader := &fakeLeader{grant: false}
	runner, err := NewRunner(Config{BaseURL: srv.URL}, nil, leader, logging.NewNop())
	require.NoError(t, err)

	runner.campaign(context.Background())
	runner.fire(context.Background(), Job{Name: "lock-lineups", Path: "/v1/internal/lineups/lock"})
	assert.Empty(t, calls())

	leader.mu.Lock()
	leader.grant = true
	leader.mu.Unlock()
	runner.campaign(context.Background())
	runner.fire(context.Background(), Job{Name: "lock-lineups", Path: "/v1/internal/lineups/lock"})
	assert.Len(t, calls(), 1)
}

func TestRunnerLosesLeadershipOnElectionError(t *testing.T) {
	t.Parallel()

	leader := &fakeLeader{grant: true}
	runner, err := NewRunner(Config{BaseURL: "http://127.0.0.1:1"}, nil, leader, logging.NewNop())
	require.NoError(t, err)

	runner.campaign(context.Background())
	require.True(t, runner.isLeader.Load())

	leader.mu.Lock()
	leader.err = errors.New("redis down")
	leader.mu.Unlock()
	runner.campaign(context.Background())
	assert.False(t, runner.isLeader.Load())
}

func TestRunnerReleasesLeadershipOnStop(t *testing.T) {
	t.Parallel()

	leader := &fakeLeader{grant: true}
	runner, err := NewRunner(Config{BaseURL: "http://127.0.0.1:1"}, DailyJobs(Secrets{}), leader, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
	leader.mu.Lock()
	defer leader.mu.Unlock()
	assert.True(t, leader.released)
}

func TestNewRunnerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(Config{}, nil, nil, logging.NewNop())
	require.Error(t, err)

	_, err = NewRunner(Config{BaseURL: "http://api"}, []Job{{Name: "bad", Spec: "not a cron"}}, nil, logging.NewNop())
	require.Error(t, err)
}
