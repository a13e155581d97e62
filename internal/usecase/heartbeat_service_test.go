package usecase

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/fixture"
	"github.com/riskibarqy/matchday-pipeline/internal/domain/heartbeat"
)

func TestHealthCheckReportsEveryProblem(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 16, 30, 0, 0, time.UTC)
	env := newTestEnv(t, func(o *envOptions) { o.now = now })
	env.seedMatchday()
	ctx := context.Background()

	started := now.Add(-90 * time.Minute)
	env.store.PutFixtures(fixture.Fixture{
		ID:         "STUCK",
		LeagueID:   testLeague,
		HomeTeamID: testHome,
		AwayTeamID: testAway,
		KickoffAt:  now.Add(-2 * time.Hour),
		Status:     fixture.StatusRunning,
		StartedAt:  &started,
	})
	if err := env.health.Mark(ctx, map[string]any{heartbeat.FieldLockOK: true}); err != nil {
		t.Fatalf("mark: %v", err)
	}

	report, err := env.health.RunWatchdog(ctx)
	if err != nil {
		t.Fatalf("run watchdog: %v", err)
	}
	want := []string{"missing stage: orchestrateOk|batchOk", "scheduledPast=1", "longRunning=1"}
	if report.OK || !reflect.DeepEqual(report.Problems, want) {
		t.Fatalf("unexpected problems: got=%v want=%v", report.Problems, want)
	}
	alerts := env.alerter.sent()
	if len(alerts) != 1 || alerts[0].Severity != SeverityCritical {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}
}

func TestHealthCheckAcceptsBatchInsteadOfOrchestrate(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.health.Mark(ctx, map[string]any{heartbeat.FieldLockOK: true}); err != nil {
		t.Fatalf("mark lock: %v", err)
	}
	if err := env.health.Mark(ctx, map[string]any{heartbeat.FieldBatchOK: true, heartbeat.FieldBatchCount: 0}); err != nil {
		t.Fatalf("mark batch: %v", err)
	}

	report, err := env.health.RunWatchdog(ctx)
	if err != nil {
		t.Fatalf("run watchdog: %v", err)
	}
	if !report.OK || len(report.Problems) != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(env.alerter.sent()) != 0 {
		t.Fatalf("healthy day must not alert")
	}

	hb, err := env.health.Get(ctx, testDay)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !hb.Bool(heartbeat.FieldLockOK) || !hb.Bool(heartbeat.FieldBatchOK) || hb.Fields[heartbeat.FieldLastUpdated] == nil {
		t.Fatalf("merge must keep earlier fields: %+v", hb.Fields)
	}
}

func TestHeartbeatGetRejectsBadDay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	if _, err := env.health.Get(context.Background(), "01-03-2026"); !isErr(err, ErrInvalidInput) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrInvalidInput)
	}
}
