// Package clock converts instants to civil days and fixed daily windows in
// the pipeline's operating timezone. Offsets always come from the zone
// database for the specific date, so DST shifts are honoured.
package clock

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const (
	DayLayout       = "2006-01-02"
	DefaultTimezone = "Europe/Istanbul"

	KickoffHour   = 19
	LockOpenHour  = 18
	LockOpenMin   = 30
	WindowEndHour = 23
	WindowEndMin  = 59
	WindowEndSec  = 59
)

// Window is an inclusive UTC range.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// DayKey returns YYYY-MM-DD of t as seen in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

func ParseDay(day string, loc *time.Location) (time.Time, error) {
	out, err := time.ParseInLocation(DayLayout, strings.TrimSpace(day), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected %s", day, DayLayout)
	}
	return out, nil
}

// CivilTime resolves the wall clock hour:min:sec on day in loc to UTC.
func CivilTime(day string, hour, min, sec int, loc *time.Location) (time.Time, error) {
	d, err := ParseDay(day, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, 0, loc).UTC(), nil
}

func KickoffAt(day string, loc *time.Location) (time.Time, error) {
	return CivilTime(day, KickoffHour, 0, 0, loc)
}

// TonightWindow is [19:00, 23:59:59] civil on day.
func TonightWindow(day string, loc *time.Location) (Window, error) {
	start, err := CivilTime(day, KickoffHour, 0, 0, loc)
	if err != nil {
		return Window{}, err
	}
	end, err := CivilTime(day, WindowEndHour, WindowEndMin, WindowEndSec, loc)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// LockWindow is [18:30, 19:00) civil on day; End is the last instant before kickoff.
func LockWindow(day string, loc *time.Location) (Window, error) {
	start, err := CivilTime(day, LockOpenHour, LockOpenMin, 0, loc)
	if err != nil {
		return Window{}, err
	}
	kickoff, err := KickoffAt(day, loc)
	if err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: kickoff.Add(-time.Nanosecond)}, nil
}

func InLockWindow(t time.Time, loc *time.Location) bool {
	w, err := LockWindow(DayKey(t, loc), loc)
	if err != nil {
		return false
	}
	return w.Contains(t)
}

// AddDays shifts a day key by n civil days.
func AddDays(day string, n int, loc *time.Location) (string, error) {
	d, err := ParseDay(day, loc)
	if err != nil {
		return "", err
	}
	return d.AddDate(0, 0, n).Format(DayLayout), nil
}

// Clock binds a zone and a time source so services never read the
// environment or the wall clock directly.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func New(loc *time.Location, now func() time.Time) Clock {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Clock{loc: loc, now: now}
}

// Fixed is a Clock frozen at t, for tests.
func Fixed(loc *time.Location, t time.Time) Clock {
	return New(loc, func() time.Time { return t })
}

func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c Clock) Today() string {
	return DayKey(c.Now(), c.Location())
}

func (c Clock) TonightWindow() (Window, error) {
	return TonightWindow(c.Today(), c.Location())
}

func (c Clock) WindowFor(day string) (Window, error) {
	return TonightWindow(day, c.Location())
}

func (c Clock) KickoffAt(day string) (time.Time, error) {
	return KickoffAt(day, c.Location())
}
