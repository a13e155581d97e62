package fixture

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLocked    Status = "locked"
	StatusRunning   Status = "running"
	StatusPlayed    Status = "played"
	StatusFailed    Status = "failed"
)

var ErrInvalidTransition = errors.New("invalid fixture status transition")

// Fixture represents one scheduled match, keyed by (LeagueID, ID).
type Fixture struct {
	ID            string
	LeagueID      string
	SeasonID      string
	Round         int
	HomeTeamID    string
	AwayTeamID    string
	KickoffAt     time.Time
	Seed          *int64
	Status        Status
	Score         *Score
	ReplayPath    string
	FailReason    string
	DispatchCount int
	StartedAt     *time.Time
	PlayedAt      *time.Time
	FailedAt      *time.Time
}

func ParseStatus(value string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	if status.rank() < 0 {
		return "", fmt.Errorf("unknown fixture status %q", value)
	}
	return status, nil
}

func (s Status) rank() int {
	switch s {
	case StatusScheduled:
		return 0
	case StatusLocked:
		return 1
	case StatusRunning:
		return 2
	case StatusPlayed, StatusFailed:
		return 3
	default:
		return -1
	}
}

func (s Status) IsTerminal() bool {
	return s == StatusPlayed || s == StatusFailed
}

// Pending reports whether the fixture may still be locked or dispatched.
func (s Status) Pending() bool {
	return s == StatusScheduled || s == StatusLocked
}

// CanTransition enforces forward-only movement. Skipping ahead is allowed
// (a batch worker can report a fixture that was never marked running);
// running -> running is the only self-loop; played and failed are final.
func CanTransition(from, to Status) bool {
	if from.rank() < 0 || to.rank() < 0 || from.IsTerminal() {
		return false
	}
	if from == to {
		return from == StatusRunning
	}
	return to.rank() > from.rank()
}

// Transition moves f to status `to` and stamps the matching timestamp.
func (f *Fixture) Transition(to Status, at time.Time) error {
	if !CanTransition(f.Status, to) {
		return fmt.Errorf("%w: %s -> %s (match=%s)", ErrInvalidTransition, f.Status, to, f.ID)
	}
	f.Status = to
	switch to {
	case StatusRunning:
		f.StartedAt = &at
		f.DispatchCount++
	case StatusPlayed:
		f.PlayedAt = &at
	case StatusFailed:
		f.FailedAt = &at
	}
	return nil
}

func (f Fixture) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("fixture id is required")
	}
	if strings.TrimSpace(f.LeagueID) == "" {
		return fmt.Errorf("fixture league id is required")
	}
	if f.HomeTeamID == "" || f.AwayTeamID == "" {
		return fmt.Errorf("fixture participants are required")
	}
	if f.HomeTeamID == f.AwayTeamID {
		return fmt.Errorf("fixture participants must differ")
	}
	if f.KickoffAt.IsZero() {
		return fmt.Errorf("fixture kickoff is required")
	}
	if f.Status.rank() < 0 {
		return fmt.Errorf("fixture status %q is invalid", f.Status)
	}
	if (f.Status == StatusPlayed) != (f.Score != nil) {
		return fmt.Errorf("fixture score must be present iff played")
	}
	if (f.Status == StatusFailed) != (f.FailReason != "") {
		return fmt.Errorf("fixture fail reason must be present iff failed")
	}
	return nil
}
