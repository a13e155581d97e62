package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func s3Record(eventName, key string) events.S3EventRecord {
	return events.S3EventRecord{
		EventName: eventName,
		S3: events.S3Entity{
			Bucket: events.S3Bucket{Name: "matchday"},
			Object: events.S3Object{Key: key},
		},
	}
}

func TestResultKeysFiltersEventsAndPrefix(t *testing.T) {
	t.Parallel()

	event := events.S3Event{Records: []events.S3EventRecord{
		s3Record("ObjectCreated:Put", "results/2026/L1/m1.json"),
		s3Record("ObjectRemoved:Delete", "results/2026/L1/m2.json"),
		s3Record("ObjectCreated:Put", "replays/2026/L1/m1.json"),
		s3Record("ObjectCreated:CompleteMultipartUpload", "results/2026/L1/match%3A3.json"),
	}}

	got := resultKeys(event)
	assert.Equal(t, []string{"results/2026/L1/m1.json", "results/2026/L1/match:3.json"}, got)
}

func TestForwarderPostsEachKeyWithBearer(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		keys []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer results-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body struct {
			Key string `json:"key"`
		}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		keys = append(keys, body.Key)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	f := &forwarder{client: srv.Client(), finalizeURL: srv.URL, secret: "results-secret", logger: logging.NewNop()}
	err := f.handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{
		s3Record("ObjectCreated:Put", "results/2026/L1/m1.json"),
		s3Record("ObjectCreated:Put", "results/2026/L1/m2.json"),
	}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"results/2026/L1/m1.json", "results/2026/L1/m2.json"}, keys)
}

func TestForwarderReturnsErrorForRetry(t *testing.T) {
	t.Parallel()

	calls := 0
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"ok":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)

	f := &forwarder{client: srv.Client(), finalizeURL: srv.URL, secret: "s", logger: logging.NewNop()}
	err := f.handle(context.Background(), events.S3Event{Records: []events.S3EventRecord{
		s3Record("ObjectCreated:Put", "results/2026/L1/m1.json"),
		s3Record("ObjectCreated:Put", "results/2026/L1/m2.json"),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "results/2026/L1/m1.json")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
