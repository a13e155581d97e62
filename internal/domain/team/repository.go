package team

import "context"

// Repository describes team persistence needs from use cases.
type Repository interface {
	ListByLeague(ctx context.Context, leagueID string) ([]Team, error)
	// GetByIDs returns the teams found; missing ids are simply absent.
	GetByIDs(ctx context.Context, teamIDs ...string) (map[string]Team, error)
}
