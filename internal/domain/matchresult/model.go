package matchresult

import (
	"context"
	"errors"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/leaguestanding"
)

var ErrFixtureMissing = errors.New("fixture missing")

// Report is one finished-match result ready to commit.
type Report struct {
	LeagueID   string
	MatchID    string
	SeasonID   string
	Score      fixture.Score
	ReplayPath string
	Source     string
	ReceivedAt time.Time
}

// Outcome describes what the commit did. Applied is false for the
// idempotent paths (already played, or poisoned).
type Outcome struct {
	Applied        bool
	PreviousStatus fixture.Status
	Fixture        fixture.Fixture
	Home           leaguestanding.Standing
	Away           leaguestanding.Standing
}

// Committer flips a fixture to played and updates both standings rows in
// one atomic unit. A fixture already played or failed is left untouched
// and the unit still completes cleanly.
type Committer interface {
	Commit(ctx context.Context, report Report) (Outcome, error)
}
