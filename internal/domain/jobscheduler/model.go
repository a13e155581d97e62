package jobscheduler

import "time"

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

const (
	JobStartMatch       = "start_match"
	JobFinalizeWatchdog = "finalize_watchdog"
)

// DispatchEvent audits one queued task through its delivery lifecycle.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	LeagueID     string
	MatchID      string
	Attempt      int
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}

// Rank orders statuses for merging: the queue can deliver a task before
// its sent audit lands, so a later event never moves a row backwards.
func (s DispatchStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusFailed:
		return 2
	case StatusCompleted:
		return 3
	default:
		return 0
	}
}

func (s DispatchStatus) Valid() bool { return s.Rank() > 0 }

// Merge folds next into prev. A lower-ranked status keeps prev's status
// and error but still raises the attempt and fills missing fields.
func Merge(prev, next DispatchEvent) DispatchEvent {
	out := prev
	if next.Attempt > out.Attempt {
		out.Attempt = next.Attempt
	}
	if out.MatchID == "" {
		out.MatchID = next.MatchID
	}
	if len(out.Payload) == 0 {
		out.Payload = next.Payload
	}
	if next.Status.Rank() < prev.Status.Rank() {
		return out
	}

	out.JobName = next.JobName
	out.JobPath = next.JobPath
	out.LeagueID = next.LeagueID
	if len(next.Payload) > 0 {
		out.Payload = next.Payload
	}
	out.Status = next.Status
	out.OccurredAt = next.OccurredAt
	out.TraceID = next.TraceID
	out.SpanID = next.SpanID
	out.ErrorMessage = ""
	if next.Status == StatusFailed {
		out.ErrorMessage = next.ErrorMessage
	}
	return out
}
