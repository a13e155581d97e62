package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/league"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDailyBatchUsesLockedPlanSeed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.seedMatchday()
	ctx := context.Background()
	_, err := env.lock.LockWindowSnapshot(ctx)
	require.NoError(t, err)
	plan, ok, err := env.plans.GetByMatchID(ctx, "M1")
	require.NoError(t, err)
	require.True(t, ok)

	result, err := env.batch.CreateDailyBatch(ctx, "")
	require.NoError(t, err)
	body, err := env.blobs.Get(ctx, result.BatchPath)
	require.NoError(t, err)
	var manifest BatchManifest
	require.NoError(t, sonic.Unmarshal(body, &manifest))
	require.Len(t, manifest.Matches, 1)
	assert.Equal(t, plan.Seed, manifest.Matches[0].Seed)
	assert.NotEqual(t, int64(777), manifest.Matches[0].Seed)
}

func TestCreateDailyBatchWritesManifest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(o *envOptions) { o.batch.Secret = "batch-secret" })
	env.seedMatchday()
	env.store.PutLeagues(league.League{ID: "L2", Name: "League Two", SeasonID: "S2", State: league.StateActive})
	seed := int64(31)
	env.store.PutFixtures(
		fixture.Fixture{ID: "M2", LeagueID: "L2", HomeTeamID: "A", AwayTeamID: "B", KickoffAt: testKickoff, Status: fixture.StatusLocked, Seed: &seed},
		fixture.Fixture{ID: "M3", LeagueID: "L2", HomeTeamID: "C", AwayTeamID: "D", KickoffAt: testKickoff, Status: fixture.StatusScheduled},
		fixture.Fixture{ID: "M4", LeagueID: "L2", HomeTeamID: "E", AwayTeamID: "F", KickoffAt: testKickoff, Status: fixture.StatusRunning},
	)
	ctx := context.Background()

	result, err := env.batch.CreateDailyBatch(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, testDay, result.Day)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, "jobs/2026-03-01/batch_2026-03-01.json", result.BatchPath)
	assert.NotEmpty(t, result.BatchReadURL)

	body, err := env.blobs.Get(ctx, result.BatchPath)
	require.NoError(t, err)
	var manifest BatchManifest
	require.NoError(t, sonic.Unmarshal(body, &manifest))
	assert.Equal(t, 3, manifest.Meta.Count)
	assert.Equal(t, "Europe/Istanbul", manifest.Meta.TZ)
	require.Len(t, manifest.Matches, 3)

	byID := map[string]BatchItem{}
	for _, item := range manifest.Matches {
		byID[item.MatchID] = item
	}
	assert.Equal(t, testSeason, byID["M1"].SeasonID)
	assert.Equal(t, "S2", byID["M2"].SeasonID, "season falls back to the league")
	assert.Equal(t, int64(31), byID["M2"].Seed)
	assert.Equal(t, int64(777), byID["M3"].Seed)
	assert.Contains(t, byID["M3"].ResultUploadURL, "results/S2/L2/M3.json")
	assert.Contains(t, byID["M3"].ReplayUploadURL, "replays/S2/L2/M3.json")
	assert.NotContains(t, byID, "M4")

	for _, item := range manifest.Matches {
		assert.NoError(t, VerifyRequestToken("batch-secret", item.RequestToken, item.MatchID, item.SeasonID, env.clk.Now(), time.Hour))
	}
	assert.Contains(t, env.blobs.signed, "GET jobs/2026-03-01/batch_2026-03-01.json 2h0m0s")
	assert.Contains(t, env.blobs.signed, "PUT results/S1/L1/M1.json 3h0m0s")

	hb, err := env.health.Get(ctx, testDay)
	require.NoError(t, err)
	assert.True(t, hb.Bool(heartbeat.FieldBatchOK))
	assert.Equal(t, 3, hb.Int(heartbeat.FieldBatchCount))
}

func TestCreateDailyBatchEmptyDayStillWritesManifest(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(o *envOptions) { o.batch.Secret = "batch-secret" })
	result, err := env.batch.CreateDailyBatch(context.Background(), "2026-03-05")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Count)

	body, err := env.blobs.Get(context.Background(), "jobs/2026-03-05/batch_2026-03-05.json")
	require.NoError(t, err)
	assert.Contains(t, string(body), `"count":0`)
}

func TestCreateDailyBatchValidation(t *testing.T) {
	t.Parallel()

	noSecret := newTestEnv(t)
	_, err := noSecret.batch.CreateDailyBatch(context.Background(), "")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	env := newTestEnv(t, func(o *envOptions) { o.batch.Secret = "s" })
	_, err = env.batch.CreateDailyBatch(context.Background(), "2026/03/01")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
