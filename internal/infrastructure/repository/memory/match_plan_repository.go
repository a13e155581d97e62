package memory

import (
	"context"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/matchplan"
)

type MatchPlanRepository struct {
	store *Store
}

func NewMatchPlanRepository(store *Store) *MatchPlanRepository {
	return &MatchPlanRepository{store: store}
}

func (r *MatchPlanRepository) GetByMatchID(_ context.Context, matchID string) (matchplan.Plan, bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.plans[matchID]
	if !ok {
		return matchplan.Plan{}, false, nil
	}
	return clonePlan(item), true, nil
}

func (r *MatchPlanRepository) Create(_ context.Context, plan matchplan.Plan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.plans[plan.MatchID]; exists {
		return matchplan.ErrAlreadyExists
	}
	r.store.plans[plan.MatchID] = clonePlan(plan)
	return nil
}
