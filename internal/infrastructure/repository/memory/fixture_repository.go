package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
)

type FixtureRepository struct {
	store *Store
}

func NewFixtureRepository(store *Store) *FixtureRepository {
	return &FixtureRepository{store: store}
}

func (r *FixtureRepository) GetByID(_ context.Context, leagueID, matchID string) (fixture.Fixture, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.fixtures[fixtureKey(leagueID, matchID)]
	if !ok {
		return fixture.Fixture{}, false, nil
	}
	return cloneFixture(item), true, nil
}

func (r *FixtureRepository) ListByKickoff(_ context.Context, query fixture.KickoffQuery) ([]fixture.Fixture, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]fixture.Fixture, 0)
	for _, item := range r.store.fixtures {
		if !query.From.IsZero() && item.KickoffAt.Before(query.From) {
			continue
		}
		if !query.To.IsZero() && item.KickoffAt.After(query.To) {
			continue
		}
		if !query.Before.IsZero() && !item.KickoffAt.Before(query.Before) {
			continue
		}
		if len(query.Statuses) > 0 && !slices.Contains(query.Statuses, item.Status) {
			continue
		}
		out = append(out, cloneFixture(item))
	}
	sortByKickoff(out)
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r *FixtureRepository) ListByLeague(_ context.Context, leagueID string) ([]fixture.Fixture, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]fixture.Fixture, 0)
	for _, item := range r.store.fixtures {
		if item.LeagueID == leagueID {
			out = append(out, cloneFixture(item))
		}
	}
	sortByKickoff(out)
	return out, nil
}

func (r *FixtureRepository) CountStartedBefore(_ context.Context, status fixture.Status, before time.Time) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, item := range r.store.fixtures {
		if item.Status == status && item.StartedAt != nil && item.StartedAt.Before(before) {
			count++
		}
	}
	return count, nil
}

func (r *FixtureRepository) CountOpenByLeague(_ context.Context, leagueID string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	count := 0
	for _, item := range r.store.fixtures {
		if item.LeagueID == leagueID && !item.Status.IsTerminal() {
			count++
		}
	}
	return count, nil
}

func (r *FixtureRepository) InsertMany(_ context.Context, fixtures []fixture.Fixture) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	inserted := 0
	for _, item := range fixtures {
		key := fixtureKey(item.LeagueID, item.ID)
		if _, exists := r.store.fixtures[key]; exists {
			continue
		}
		r.store.fixtures[key] = cloneFixture(item)
		inserted++
	}
	return inserted, nil
}

func (r *FixtureRepository) MarkLocked(_ context.Context, leagueID, matchID string) (bool, error) {
	return r.transition(leagueID, matchID, fixture.StatusLocked, time.Time{}, nil)
}

func (r *FixtureRepository) MarkRunning(_ context.Context, leagueID, matchID string, at time.Time) (bool, error) {
	return r.transition(leagueID, matchID, fixture.StatusRunning, at, nil)
}

func (r *FixtureRepository) MarkFailed(_ context.Context, leagueID, matchID, reason string, at time.Time) (bool, error) {
	return r.transition(leagueID, matchID, fixture.StatusFailed, at, func(item *fixture.Fixture) {
		item.FailReason = reason
	})
}

func (r *FixtureRepository) transition(leagueID, matchID string, to fixture.Status, at time.Time, mutate func(*fixture.Fixture)) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	key := fixtureKey(leagueID, matchID)
	item, ok := r.store.fixtures[key]
	if !ok || !fixture.CanTransition(item.Status, to) {
		return false, nil
	}
	if err := item.Transition(to, at.UTC()); err != nil {
		return false, nil
	}
	if mutate != nil {
		mutate(&item)
	}
	r.store.fixtures[key] = item
	return true, nil
}

func sortByKickoff(items []fixture.Fixture) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].KickoffAt.Equal(items[j].KickoffAt) {
			return items[i].KickoffAt.Before(items[j].KickoffAt)
		}
		if items[i].LeagueID != items[j].LeagueID {
			return items[i].LeagueID < items[j].LeagueID
		}
		return items[i].ID < items[j].ID
	})
}
