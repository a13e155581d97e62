package memory

import (
	"context"
	"sort"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/team"
)

type TeamRepository struct {
	store *Store
}

func NewTeamRepository(store *Store) *TeamRepository {
	return &TeamRepository{store: store}
}

func (r *TeamRepository) ListByLeague(_ context.Context, leagueID string) ([]team.Team, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]team.Team, 0)
	for _, item := range r.store.teams {
		if item.LeagueID == leagueID {
			out = append(out, cloneTeam(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *TeamRepository) GetByIDs(_ context.Context, teamIDs ...string) (map[string]team.Team, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]team.Team, len(teamIDs))
	for _, id := range teamIDs {
		if item, ok := r.store.teams[id]; ok {
			out[id] = cloneTeam(item)
		}
	}
	return out, nil
}

// UpdateLineup replaces a team's live lineup.
func (r *TeamRepository) UpdateLineup(_ context.Context, teamID string, lineup team.Lineup) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item, ok := r.store.teams[teamID]
	if !ok {
		return false, nil
	}
	item.Lineup = lineup
	r.store.teams[teamID] = cloneTeam(item)
	return true, nil
}
