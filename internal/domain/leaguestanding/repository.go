package leaguestanding

import "context"

// Repository is read-only; rows are written by the result committer only.
type Repository interface {
	ListByLeague(ctx context.Context, leagueID string) ([]Standing, error)
}
