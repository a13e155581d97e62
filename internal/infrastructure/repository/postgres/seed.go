package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/matchday-pipeline/internal/infrastructure/repository/memory"
)

// BootstrapSeed loads the demo league and its teams into an empty database.
func BootstrapSeed(ctx context.Context, db *sqlx.DB) error {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(1) FROM leagues`); err != nil {
		return fmt.Errorf("count leagues for bootstrap seed: %w", err)
	}
	if count > 0 {
		return nil
	}

	leagues := NewLeagueRepository(db)
	for _, l := range memory.SeedLeagues() {
		if err := leagues.Upsert(ctx, l); err != nil {
			return fmt.Errorf("seed league %s: %w", l.ID, err)
		}
	}

	teams := NewTeamRepository(db)
	for _, t := range memory.SeedTeams() {
		if err := teams.Upsert(ctx, t); err != nil {
			return fmt.Errorf("seed team %s: %w", t.ID, err)
		}
	}

	return nil
}
