package heartbeat

import (
	"context"
	"time"
)

const (
	FieldLockOK           = "lockOk"
	FieldMatchesLocked    = "matchesLocked"
	FieldOrchestrateOK    = "orchestrateOk"
	FieldMatchesScheduled = "matchesScheduled"
	FieldDispatchMode     = "dispatchMode"
	FieldBatchOK          = "batchOk"
	FieldBatchCount       = "batchCount"
	FieldLastUpdated      = "lastUpdated"
)

// Heartbeat is the per-day checklist of pipeline stages.
type Heartbeat struct {
	Day         string
	Fields      map[string]any
	LastUpdated time.Time
}

func (h Heartbeat) Bool(key string) bool {
	v, ok := h.Fields[key].(bool)
	return ok && v
}

func (h Heartbeat) Int(key string) int {
	switch v := h.Fields[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Repository merges fields; existing keys not in patch are kept.
type Repository interface {
	Merge(ctx context.Context, day string, patch map[string]any, at time.Time) error
	Get(ctx context.Context, day string) (Heartbeat, bool, error)
}
