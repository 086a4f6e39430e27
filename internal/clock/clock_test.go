package clock

import (
	"testing"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

func mustLoc(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestDaysBetween(t *testing.T) {
	loc := mustLoc(t)
	a := time.Date(2024, 5, 1, 23, 0, 0, 0, loc)
	b := time.Date(2024, 5, 9, 1, 0, 0, 0, loc)
	if got := DaysBetween(a, b); got != 8 {
		t.Fatalf("DaysBetween = %d, want 8", got)
	}
}

func TestInterventionDayRoundTrip(t *testing.T) {
	loc := mustLoc(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, loc)
	c := New(loc, nil)
	u := domain.User{StartDate: start}

	for k := 0; k < 30; k++ {
		day := start.AddDate(0, 0, k)
		if got := c.InterventionDay(u, day); got != k+1 {
			t.Fatalf("InterventionDay(start+%d) = %d, want %d", k, got, k+1)
		}
	}
}

func TestIsNewWeek(t *testing.T) {
	loc := mustLoc(t)
	anchor := time.Date(2024, 6, 5, 0, 0, 0, 0, loc) // Wednesday

	sameWeekdayLater := time.Date(2024, 6, 12, 0, 0, 0, 0, loc)
	if !IsNewWeek(sameWeekdayLater, anchor) {
		t.Fatalf("expected IsNewWeek true for same weekday a week later")
	}

	differentWeekday := time.Date(2024, 6, 13, 0, 0, 0, 0, loc) // Thursday
	if IsNewWeek(differentWeekday, anchor) {
		t.Fatalf("expected IsNewWeek false for a different weekday")
	}

	notAfter := anchor
	if IsNewWeek(notAfter, anchor) {
		t.Fatalf("expected IsNewWeek false when current == anchor")
	}
}

func TestExecutionWeekClamped(t *testing.T) {
	loc := mustLoc(t)
	quit := time.Date(2024, 6, 5, 0, 0, 0, 0, loc)

	cases := []struct {
		daysAfter int
		want      int
	}{
		{0, 1},
		{6, 1},
		{7, 2},
		{83, 12},
		{200, 12},
	}
	for _, tc := range cases {
		today := quit.AddDate(0, 0, tc.daysAfter)
		if got := ExecutionWeek(quit, today); got != tc.want {
			t.Fatalf("ExecutionWeek(+%d days) = %d, want %d", tc.daysAfter, got, tc.want)
		}
	}
}

func TestAtPreferredHour(t *testing.T) {
	loc := mustLoc(t)
	c := New(loc, map[domain.Daypart]int{domain.Morning: 10})
	u := domain.User{PreferredDaypart: domain.Morning}

	date := time.Date(2024, 5, 9, 23, 59, 0, 0, loc)
	got := c.AtPreferredHour(u, date)
	want := time.Date(2024, 5, 9, 10, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("AtPreferredHour = %v, want %v", got, want)
	}
}

func TestFixedClock(t *testing.T) {
	loc := mustLoc(t)
	fixed := time.Date(2024, 5, 10, 13, 0, 0, 0, loc)
	c := NewFixed(loc, nil, fixed)

	if !c.Today().Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("Today() did not reflect fixed now")
	}
	if !c.Now().Equal(fixed) {
		t.Fatalf("Now() did not reflect fixed now")
	}
}
