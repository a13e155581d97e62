package jobscheduler

import "context"

// Repository keeps one audit row per dispatch id. UpsertEvent folds the
// event into any existing row the way Merge does.
type Repository interface {
	UpsertEvent(ctx context.Context, event DispatchEvent) error
}
