package league

import "fmt"

type State string

const (
	StateForming   State = "forming"
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StateCompleted State = "completed"
)

// League groups the teams that play one season of fixtures.
type League struct {
	ID        string
	Name      string
	SeasonID  string
	State     State
	StartDate string
}

func (l League) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("league id is required")
	}
	if l.Name == "" {
		return fmt.Errorf("league name is required")
	}
	if l.SeasonID == "" {
		return fmt.Errorf("league season is required")
	}

	return nil
}
