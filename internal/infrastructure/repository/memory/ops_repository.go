package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/failedjob"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
)

type FailedJobRepository struct {
	store *Store
}

func NewFailedJobRepository(store *Store) *FailedJobRepository {
	return &FailedJobRepository{store: store}
}

func (r *FailedJobRepository) Save(_ context.Context, record failedjob.Record) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.failedJobs[record.MatchID]; exists {
		return false, nil
	}
	r.store.failedJobs[record.MatchID] = record
	return true, nil
}

func (r *FailedJobRepository) Get(_ context.Context, matchID string) (failedjob.Record, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.failedJobs[matchID]
	return item, ok, nil
}

type HeartbeatRepository struct {
	store *Store
}

func NewHeartbeatRepository(store *Store) *HeartbeatRepository {
	return &HeartbeatRepository{store: store}
}

func (r *HeartbeatRepository) Merge(_ context.Context, day string, patch map[string]any, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.heartbeats[day]
	if !ok {
		item = heartbeat.Heartbeat{Day: day, Fields: make(map[string]any)}
	}
	fields := make(map[string]any, len(item.Fields)+len(patch)+1)
	for k, v := range item.Fields {
		fields[k] = v
	}
	for k, v := range patch {
		fields[k] = v
	}
	fields[heartbeat.FieldLastUpdated] = at.UTC().Format(time.RFC3339)
	item.Fields = fields
	item.LastUpdated = at.UTC()
	r.store.heartbeats[day] = item
	return nil
}

func (r *HeartbeatRepository) Get(_ context.Context, day string) (heartbeat.Heartbeat, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.heartbeats[day]
	if !ok {
		return heartbeat.Heartbeat{}, false, nil
	}
	fields := make(map[string]any, len(item.Fields))
	for k, v := range item.Fields {
		fields[k] = v
	}
	item.Fields = fields
	return item, true, nil
}

type JobDispatchRepository struct {
	store *Store
}

func NewJobDispatchRepository(store *Store) *JobDispatchRepository {
	return &JobDispatchRepository{store: store}
}

func (r *JobDispatchRepository) UpsertEvent(_ context.Context, event jobscheduler.DispatchEvent) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if !event.Status.Valid() {
		return fmt.Errorf("unknown dispatch status %q", event.Status)
	}
	if prev, ok := r.store.dispatches[event.DispatchID]; ok {
		event = jobscheduler.Merge(prev, event)
	}
	r.store.dispatches[event.DispatchID] = event
	return nil
}

// Get is used by tests and the memory-backed dev server.
func (r *JobDispatchRepository) Get(dispatchID string) (jobscheduler.DispatchEvent, bool) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.dispatches[dispatchID]
	return item, ok
}
