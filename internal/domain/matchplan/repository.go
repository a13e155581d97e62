package matchplan

import "context"

type Repository interface {
	GetByMatchID(ctx context.Context, matchID string) (Plan, bool, error)
	// Create fails with ErrAlreadyExists if a plan for the match exists.
	Create(ctx context.Context, plan Plan) error
}
