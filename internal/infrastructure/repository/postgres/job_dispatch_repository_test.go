package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-pipeline/internal/domain/jobscheduler"
)

func TestNewJobDispatchModelFailedCarriesError(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 16, 20, 0, 0, time.UTC)
	model, err := newJobDispatchModel(jobscheduler.DispatchEvent{
		DispatchID:   " finalize-L1-m1-1 ",
		JobName:      jobscheduler.JobFinalizeWatchdog,
		LeagueID:     "L1",
		MatchID:      "m1",
		Attempt:      1,
		Status:       jobscheduler.StatusFailed,
		ErrorMessage: "worker unavailable",
		OccurredAt:   at,
	})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if model.DispatchID != "finalize-L1-m1-1" {
		t.Fatalf("unexpected dispatch id: %q", model.DispatchID)
	}
	if model.JobPath != "/unknown" {
		t.Fatalf("unexpected job path fallback: %q", model.JobPath)
	}
	if model.FailedAt == nil || !model.FailedAt.Equal(at) || model.SentAt != nil || model.CompletedAt != nil {
		t.Fatalf("unexpected timestamps: %+v", model)
	}
	if model.LastError == nil || *model.LastError != "worker unavailable" {
		t.Fatalf("unexpected last error: %v", model.LastError)
	}
	if model.StatusRank != jobscheduler.StatusFailed.Rank() {
		t.Fatalf("unexpected rank: got=%d", model.StatusRank)
	}
	if model.Payload != "{}" {
		t.Fatalf("unexpected empty payload: %q", model.Payload)
	}
}

func TestNewJobDispatchModelSentDropsError(t *testing.T) {
	t.Parallel()

	model, err := newJobDispatchModel(jobscheduler.DispatchEvent{
		DispatchID:   "start-L1-m1-20260301",
		Status:       jobscheduler.StatusSent,
		ErrorMessage: "ignored",
		Payload:      map[string]any{"matchId": "m1"},
	})
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if model.LastError != nil {
		t.Fatalf("sent rows carry no error, got %q", *model.LastError)
	}
	if model.SentAt == nil {
		t.Fatalf("sent_at must default to now")
	}
	if !strings.Contains(model.Payload, `"matchId"`) {
		t.Fatalf("unexpected payload: %q", model.Payload)
	}
}

func TestNewJobDispatchModelRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := newJobDispatchModel(jobscheduler.DispatchEvent{Status: jobscheduler.StatusSent}); err == nil {
		t.Fatalf("expected error for missing dispatch id")
	}
	if _, err := newJobDispatchModel(jobscheduler.DispatchEvent{DispatchID: "d1", Status: "queued"}); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}
