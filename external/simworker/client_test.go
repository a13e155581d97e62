package simworker

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/resilience"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerPostsSpec(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var got usecase.MatchSpec
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(raw, &got)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL + "/simulate", Token: "worker-secret"}, logging.NewNop())
	require.NoError(t, err)

	spec := usecase.MatchSpec{SchemaVersion: 1, MatchID: "M1", LeagueID: "L1", RNGSeed: 42, Dispatch: 1}
	require.NoError(t, client.Trigger(context.Background(), spec))
	assert.Equal(t, "Bearer worker-secret", gotAuth)
	assert.Equal(t, spec.MatchID, got.MatchID)
	assert.Equal(t, spec.RNGSeed, got.RNGSeed)
}

func TestTriggerClassifiesFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	status := atomic.Int32{}
	status.Store(http.StatusBadRequest)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	client, err := NewClient(Config{
		URL:            srv.URL,
		CircuitBreaker: resilience.CircuitBreakerConfig{Enabled: true, FailureThreshold: 2, OpenTimeout: time.Minute, HalfOpenMaxReq: 1},
	}, logging.NewNop())
	require.NoError(t, err)

	err = client.Trigger(context.Background(), usecase.MatchSpec{MatchID: "M1"})
	require.Error(t, err)
	assert.False(t, crerr.Is(err, ErrTransient))

	status.Store(http.StatusServiceUnavailable)
	for i := 0; i < 2; i++ {
		err = client.Trigger(context.Background(), usecase.MatchSpec{MatchID: "M1"})
		require.Error(t, err)
		assert.True(t, crerr.Is(err, ErrTransient))
	}

	err = client.Trigger(context.Background(), usecase.MatchSpec{MatchID: "M1"})
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{}, nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestTriggerHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	client, err := NewClient(Config{URL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Burst: 1}, logging.NewNop())
	require.NoError(t, err)

	// The first call drains the bucket, the second waits on the limiter.
	_ = client.limiter.Allow()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = client.Trigger(ctx, usecase.MatchSpec{MatchID: "M1"})
	require.Error(t, err)
}
