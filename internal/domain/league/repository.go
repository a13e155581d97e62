package league

import "context"

// Repository describes league persistence needs from use cases.
type Repository interface {
	GetByID(ctx context.Context, leagueID string) (League, bool, error)
	// CompareAndSetState moves the league to `to` only from `from`.
	CompareAndSetState(ctx context.Context, leagueID string, from, to State) (bool, error)
}
