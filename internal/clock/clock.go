// Package clock provides the civil-time "today"/"now" feed and the
// day/week arithmetic the phase-state machine is built on. All
// computations are pinned to one fixed IANA zone for the whole process —
// there is no per-user time zone.
package clock

import (
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Clock exposes the calendar primitives spec.md §4.1 names. It is a thin,
// stateless wrapper over time.Location plus the process-wide preferred-hour
// configuration (morning/afternoon/evening -> 24h integer).
type Clock struct {
	loc     *time.Location
	hours   map[domain.Daypart]int
	nowFunc func() time.Time
}

// DefaultHours mirrors typical deployment defaults; callers normally
// override these from config.Config.
var DefaultHours = map[domain.Daypart]int{
	domain.Morning:   9,
	domain.Afternoon: 14,
	domain.Evening:   19,
}

// New builds a Clock pinned to loc, using hours to resolve a user's
// preferred daypart to an hour-of-day. A nil or incomplete hours map falls
// back to DefaultHours entries.
func New(loc *time.Location, hours map[domain.Daypart]int) *Clock {
	merged := make(map[domain.Daypart]int, len(DefaultHours))
	for k, v := range DefaultHours {
		merged[k] = v
	}
	for k, v := range hours {
		merged[k] = v
	}
	return &Clock{loc: loc, hours: merged, nowFunc: time.Now}
}

// NewFixed builds a Clock whose Now/Today always report fixedNow, for
// deterministic tests of day/week arithmetic and scheduling decisions.
func NewFixed(loc *time.Location, hours map[domain.Daypart]int, fixedNow time.Time) *Clock {
	c := New(loc, hours)
	c.SetNow(fixedNow)
	return c
}

// SetNow repoints a fixed Clock at a new instant. Test-only: production
// clocks are built with New and always track the wall clock.
func (c *Clock) SetNow(t time.Time) {
	c.nowFunc = func() time.Time { return t }
}

// Location returns the fixed civil zone this Clock operates in.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Today returns the current civil date (midnight local) in the fixed zone.
func (c *Clock) Today() time.Time {
	return startOfDay(c.nowFunc().In(c.loc))
}

// Now returns the current instant in the fixed zone.
func (c *Clock) Now() time.Time {
	return c.nowFunc().In(c.loc)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of whole civil days from a to b (b - a),
// ignoring time-of-day.
func DaysBetween(a, b time.Time) int {
	a = startOfDay(a)
	b = startOfDay(b)
	return int(b.Sub(a).Hours() / 24)
}

// IsNewWeek is true iff current and anchor fall on the same weekday and
// current is strictly after anchor.
func IsNewWeek(current, anchor time.Time) bool {
	return startOfDay(current).Weekday() == startOfDay(anchor).Weekday() && current.After(startOfDay(anchor))
}

// InterventionDay returns the 1-based day index counted from the user's
// start date: InterventionDay(start) == 1.
func (c *Clock) InterventionDay(u domain.User, current time.Time) int {
	return DaysBetween(u.StartDate, current) + 1
}

// ExecutionWeek returns the 1-based week index anchored at quitDate,
// clamped to [1, ExecutionWeeksTotal]. Only meaningful once today >=
// quitDate.
func ExecutionWeek(quitDate, today time.Time) int {
	days := DaysBetween(quitDate, today)
	if days < 0 {
		days = 0
	}
	week := days/7 + 1
	if week < 1 {
		week = 1
	}
	if week > domain.ExecutionWeeksTotal {
		week = domain.ExecutionWeeksTotal
	}
	return week
}

// AtPreferredHour returns date (civil, midnight) shifted to the given
// user's preferred hour-of-day, in the fixed zone.
func (c *Clock) AtPreferredHour(u domain.User, date time.Time) time.Time {
	hour := c.hours[u.PreferredDaypart]
	d := startOfDay(date.In(c.loc))
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, c.loc)
}

// DateAtOffset returns the user's start date shifted by offsetDays, at
// midnight in the fixed zone.
func (c *Clock) DateAtOffset(u domain.User, offsetDays int) time.Time {
	return startOfDay(u.StartDate.In(c.loc)).AddDate(0, 0, offsetDays)
}
