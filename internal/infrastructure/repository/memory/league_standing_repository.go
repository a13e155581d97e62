package memory

import (
	"context"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
)

type LeagueStandingRepository struct {
	store *Store
}

func NewLeagueStandingRepository(store *Store) *LeagueStandingRepository {
	return &LeagueStandingRepository{store: store}
}

func (r *LeagueStandingRepository) ListByLeague(_ context.Context, leagueID string) ([]leaguestanding.Standing, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]leaguestanding.Standing, 0)
	for _, item := range r.store.standings {
		if item.LeagueID == leagueID {
			out = append(out, item)
		}
	}
	leaguestanding.Sort(out)
	return out, nil
}
