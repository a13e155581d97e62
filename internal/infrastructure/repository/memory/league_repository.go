package memory

import (
	"context"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
)

type LeagueRepository struct {
	store *Store
}

func NewLeagueRepository(store *Store) *LeagueRepository {
	return &LeagueRepository{store: store}
}

func (r *LeagueRepository) GetByID(_ context.Context, leagueID string) (league.League, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.leagues[leagueID]
	return item, ok, nil
}

func (r *LeagueRepository) CompareAndSetState(_ context.Context, leagueID string, from, to league.State) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.leagues[leagueID]
	if !ok || item.State != from {
		return false, nil
	}
	item.State = to
	r.store.leagues[leagueID] = item
	return true, nil
}
