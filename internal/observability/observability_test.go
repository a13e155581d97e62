package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/matchday-pipeline/internal/config"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSkipsDisabledComponents(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		UptraceEnabled: true,
		UptraceDSN:     " ",
		ServiceName:    "matchday-pipeline",
		AppEnv:         config.EnvDev,
	}
	stack, err := Start(context.Background(), cfg, logging.NewNop(), Tracing, ContinuousProfiling, DebugServer)
	require.NoError(t, err)
	assert.Empty(t, stack.Running())
	assert.NoError(t, stack.Shutdown(context.Background()))
}

func TestStartDebugServerRequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), config.Config{PprofEnabled: true, PprofAddr: " "}, logging.NewNop(), DebugServer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start pprof")
}

func TestStartDebugServerServesAndStops(t *testing.T) {
	t.Parallel()

	stack, err := Start(context.Background(), config.Config{PprofEnabled: true, PprofAddr: "127.0.0.1:0"}, logging.NewNop(), DebugServer)
	require.NoError(t, err)
	assert.Equal(t, []string{"pprof"}, stack.Running())
	require.NoError(t, stack.Shutdown(context.Background()))
	assert.Empty(t, stack.Running())
}

func TestStartRejectsUnknownComponent(t *testing.T) {
	t.Parallel()

	_, err := Start(context.Background(), config.Config{}, logging.NewNop(), Component(42))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "component(42)")
}

func TestDebugMuxRoutesIndex(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	debugMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	debugMux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
