package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
)

func heartbeatKey(day string) string { return "ops:heartbeat:" + day }

// HeartbeatRepository keeps each day's heartbeat as a hash. HSET only
// touches the fields it is given, so stages never overwrite each other.
// Keys carry no expiry; past days stay as the historical record.
type HeartbeatRepository struct {
	client redis.Cmdable
}

func NewHeartbeatRepository(client redis.Cmdable) *HeartbeatRepository {
	return &HeartbeatRepository{client: client}
}

func (r *HeartbeatRepository) Merge(ctx context.Context, day string, patch map[string]any, at time.Time) error {
	values, err := encodeFields(patch, at)
	if err != nil {
		return err
	}

	key := heartbeatKey(day)
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis merge heartbeat day=%s: %w", day, err)
	}
	return nil
}

func (r *HeartbeatRepository) Get(ctx context.Context, day string) (heartbeat.Heartbeat, bool, error) {
	raw, err := r.client.HGetAll(ctx, heartbeatKey(day)).Result()
	if err != nil {
		return heartbeat.Heartbeat{}, false, fmt.Errorf("redis get heartbeat day=%s: %w", day, err)
	}
	if len(raw) == 0 {
		return heartbeat.Heartbeat{}, false, nil
	}

	out, err := decodeFields(day, raw)
	if err != nil {
		return heartbeat.Heartbeat{}, false, err
	}
	return out, true, nil
}

func encodeFields(patch map[string]any, at time.Time) (map[string]any, error) {
	at = at.UTC()
	values := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		encoded, err := sonic.MarshalString(v)
		if err != nil {
			return nil, fmt.Errorf("encode heartbeat field %s: %w", k, err)
		}
		values[k] = encoded
	}
	stamp, _ := sonic.MarshalString(at.Format(time.RFC3339))
	values[heartbeat.FieldLastUpdated] = stamp
	return values, nil
}

func decodeFields(day string, raw map[string]string) (heartbeat.Heartbeat, error) {
	out := heartbeat.Heartbeat{Day: day, Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		var decoded any
		if err := sonic.UnmarshalString(v, &decoded); err != nil {
			// Values written by hand (redis-cli) are kept verbatim.
			decoded = v
		}
		out.Fields[k] = decoded
	}
	if stamp, ok := out.Fields[heartbeat.FieldLastUpdated].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, stamp); err == nil {
			out.LastUpdated = parsed.UTC()
		}
	}
	return out, nil
}
