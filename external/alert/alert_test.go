package alert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name string
	err  error
	got  []Message
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestDispatcherFansOut(t *testing.T) {
	t.Parallel()

	broken := &recordingSink{name: "broken", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(logging.NewNop(), broken, ok)
	d.now = func() time.Time { return time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC) }

	err := d.Alert(context.Background(), usecase.Alert{
		Severity: usecase.SeverityCritical,
		Title:    "match poisoned",
		Fields:   map[string]string{"matchId": "M1"},
	})
	require.Error(t, err)
	require.Len(t, broken.got, 1)
	require.Len(t, ok.got, 1)
	assert.Equal(t, broken.got[0].ID, ok.got[0].ID)
	assert.Len(t, ok.got[0].ID, 26)
	assert.Equal(t, "M1", ok.got[0].Fields["matchId"])
}

func TestLogSinkWritesSeverity(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := NewLogSink(logging.NewWriter(&buf, logging.LevelDebug))
	require.NoError(t, sink.Send(context.Background(), Message{ID: "A1", Severity: usecase.SeverityCritical, Title: "health", Fields: map[string]string{"day": "2026-03-01"}}))

	line := buf.String()
	assert.Contains(t, line, `"level":"ERROR"`)
	assert.Contains(t, line, `"day":"2026-03-01"`)
}

func TestSlackSinkPostsAttachment(t *testing.T) {
	t.Parallel()

	var got slackPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, sonic.Unmarshal(raw, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink, err := NewSlackSink(srv.URL)
	require.NoError(t, err)
	err = sink.Send(context.Background(), Message{
		ID:       "01J00000000000000000000000",
		Severity: usecase.SeverityCritical,
		Title:    "pipeline health",
		Text:     "missing stages: lock",
		Fields:   map[string]string{"b": "2", "a": "1"},
		At:       time.Unix(1700000000, 0),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(got.Text, ":rotating_light: *pipeline health*"))
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "#d40e0d", got.Attachments[0].Color)
	require.Len(t, got.Attachments[0].Fields, 2)
	assert.Equal(t, "a", got.Attachments[0].Fields[0].Title)
	assert.Equal(t, int64(1700000000), got.Attachments[0].Ts)
}

func TestSlackSinkReportsStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	sink, err := NewSlackSink(srv.URL)
	require.NoError(t, err)
	err = sink.Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	_, err = NewSlackSink(" ")
	require.Error(t, err)
}
