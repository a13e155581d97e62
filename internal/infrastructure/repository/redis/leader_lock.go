package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultLeaderKey = "scheduler:leader"
	DefaultLeaderTTL = 30 * time.Second
)

var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// LeaderLock elects one scheduler replica. The holder renews before the
// TTL runs out; a crashed holder loses the lock after one TTL.
type LeaderLock struct {
	client     redis.Cmdable
	key        string
	instanceID string
	ttl        time.Duration
}

func NewLeaderLock(client redis.Cmdable, key, instanceID string, ttl time.Duration) *LeaderLock {
	if key == "" {
		key = DefaultLeaderKey
	}
	if ttl <= 0 {
		ttl = DefaultLeaderTTL
	}
	return &LeaderLock{client: client, key: key, instanceID: instanceID, ttl: ttl}
}

// Acquire takes the lock or renews it when this instance already holds it.
func (l *LeaderLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.instanceID, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("leader election setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	result, err := renewScript.Run(ctx, l.client, []string{l.key}, l.instanceID, l.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("leader renewal: %w", err)
	}
	return result == 1, nil
}

func (l *LeaderLock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.instanceID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("leader release: %w", err)
	}
	return nil
}

func (l *LeaderLock) TTL() time.Duration { return l.ttl }
