package failedjob

import (
	"context"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
)

// Record is the operator triage entry for a poisoned fixture.
type Record struct {
	MatchID    string
	LeagueID   string
	LastStatus fixture.Status
	Reason     string
	Attempt    int
	CreatedAt  time.Time
}

type Repository interface {
	// Save stores r once per match; created is false if one already exists.
	Save(ctx context.Context, r Record) (created bool, err error)
	Get(ctx context.Context, matchID string) (Record, bool, error)
}
