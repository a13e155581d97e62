package redis

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
)

// commandRecorder captures commands and answers them without a server.
type commandRecorder struct {
	mu    sync.Mutex
	names []string
}

func (r *commandRecorder) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (r *commandRecorder) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		r.record(cmd)
		return nil
	}
}

func (r *commandRecorder) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			r.record(cmd)
		}
		return nil
	}
}

func (r *commandRecorder) record(cmd redis.Cmder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, cmd.Name())
}

func TestHeartbeatFieldsRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 15, 35, 0, 0, time.FixedZone("TRT", 3*3600))
	values, err := encodeFields(map[string]any{
		heartbeat.FieldLockOK:        true,
		heartbeat.FieldMatchesLocked: 4,
		heartbeat.FieldDispatchMode:  "queued",
	}, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := values[heartbeat.FieldLockOK]; got != "true" {
		t.Fatalf("unexpected encoded bool: got=%v want=%v", got, "true")
	}

	raw := make(map[string]string, len(values))
	for k, v := range values {
		raw[k] = v.(string)
	}
	hb, err := decodeFields("2026-03-01", raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !hb.Bool(heartbeat.FieldLockOK) || hb.Int(heartbeat.FieldMatchesLocked) != 4 {
		t.Fatalf("unexpected heartbeat fields: %+v", hb.Fields)
	}
	if hb.Fields[heartbeat.FieldDispatchMode] != "queued" {
		t.Fatalf("unexpected dispatch mode: got=%v want=%v", hb.Fields[heartbeat.FieldDispatchMode], "queued")
	}
	if !hb.LastUpdated.Equal(at) {
		t.Fatalf("unexpected last updated: got=%v want=%v", hb.LastUpdated, at)
	}
}

func TestDecodeKeepsHandWrittenValues(t *testing.T) {
	t.Parallel()

	hb, err := decodeFields("2026-03-01", map[string]string{"note": "manual fix"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hb.Fields["note"] != "manual fix" {
		t.Fatalf("unexpected note: %v", hb.Fields["note"])
	}
	if !hb.LastUpdated.IsZero() {
		t.Fatalf("expected zero last updated, got %v", hb.LastUpdated)
	}
}

func TestHeartbeatKey(t *testing.T) {
	t.Parallel()

	if got := heartbeatKey("2026-03-01"); got != "ops:heartbeat:2026-03-01" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestNewClientParsesURL(t *testing.T) {
	t.Parallel()

	client, err := NewClient("redis://:secret@cache.internal:6380/2")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()
	opts := client.Options()
	if opts.Addr != "cache.internal:6380" || opts.DB != 2 || opts.Password != "secret" {
		t.Fatalf("unexpected options: addr=%s db=%d", opts.Addr, opts.DB)
	}

	if _, err := NewClient(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestLeaderLockDefaults(t *testing.T) {
	t.Parallel()

	lock := NewLeaderLock(nil, "", "replica-1", 0)
	if lock.key != DefaultLeaderKey || lock.TTL() != DefaultLeaderTTL {
		t.Fatalf("unexpected defaults: key=%s ttl=%s", lock.key, lock.TTL())
	}
}

func TestHeartbeatMergeNeverExpires(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	rec := &commandRecorder{}
	client.AddHook(rec)

	repo := NewHeartbeatRepository(client)
	err := repo.Merge(context.Background(), "2026-10-15", map[string]any{heartbeat.FieldLockOK: true}, time.Now())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	sawSet := false
	for _, name := range rec.names {
		switch name {
		case "hset":
			sawSet = true
		case "expire", "expireat", "pexpire", "pexpireat":
			t.Fatalf("heartbeat keys must not expire, got %v", rec.names)
		}
	}
	if !sawSet {
		t.Fatalf("expected hset, got %v", rec.names)
	}
}
