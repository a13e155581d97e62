package fixture

import (
	"context"
	"time"
)

// KickoffQuery selects fixtures by kickoff range and status. A zero From
// or To leaves that side open; To is inclusive.
type KickoffQuery struct {
	From     time.Time
	To       time.Time
	Before   time.Time
	Statuses []Status
	Limit    int
}

// Repository is the fixture store. Every Mark* method is a conditional
// update: it only applies when the current status allows the move and
// reports whether a row changed.
type Repository interface {
	GetByID(ctx context.Context, leagueID, matchID string) (Fixture, bool, error)
	ListByKickoff(ctx context.Context, query KickoffQuery) ([]Fixture, error)
	ListByLeague(ctx context.Context, leagueID string) ([]Fixture, error)
	CountStartedBefore(ctx context.Context, status Status, before time.Time) (int, error)
	CountOpenByLeague(ctx context.Context, leagueID string) (int, error)
	InsertMany(ctx context.Context, fixtures []Fixture) (int, error)
	MarkLocked(ctx context.Context, leagueID, matchID string) (bool, error)
	MarkRunning(ctx context.Context, leagueID, matchID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, leagueID, matchID, reason string, at time.Time) (bool, error)
}
