package registry

import (
	"context"
	"testing"
	"time"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/store"
	"github.com/haltline/intervention-controller/internal/taskqueue"
)

var testHours = map[domain.Daypart]int{
	domain.Morning:   10,
	domain.Afternoon: 14,
	domain.Evening:   19,
}

func newTestRegistry(t *testing.T, now time.Time) (*Registry, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFixed(now.Location(), testHours, now)
	q := taskqueue.New()
	return NewRegistry(st, clk, q), st
}

func TestEnrollRunsOnboardingSchedule(t *testing.T) {
	ctx := context.Background()
	l := time.UTC
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, l)
	reg, st := newTestRegistry(t, start)

	u := domain.User{ID: "u1", StartDate: start, QuitDate: start.AddDate(0, 0, 31), PreferredDaypart: domain.Morning}
	st.PutUser(&u)
	if err := reg.Enroll(ctx, u); err != nil {
		t.Fatalf("Enroll: %v", err)
	}

	tag, err := st.CurrentPhaseState(ctx, "u1")
	if err != nil || tag != domain.StateOnboarding {
		t.Fatalf("CurrentPhaseState = %v, %v, want onboarding", tag, err)
	}

	comp, _ := st.GetComponentByName(ctx, domain.PreparationIntroduction)
	last, err := st.LastState(ctx, "u1", comp.ID)
	if err != nil || last == nil {
		t.Fatalf("expected preparation_introduction scheduled on enroll, got %v, %v", last, err)
	}
}

func TestBootstrapRehydratesWithoutRerunningOnEnter(t *testing.T) {
	ctx := context.Background()
	l := time.UTC
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, l)
	st := store.NewMemoryStore()
	u := &domain.User{ID: "u2", StartDate: start, QuitDate: start.AddDate(0, 0, 31), PreferredDaypart: domain.Morning}
	st.PutUser(u)
	if err := st.SetPhaseState(ctx, "u2", domain.StateTracking); err != nil {
		t.Fatalf("seed phase state: %v", err)
	}

	clk := clock.NewFixed(l, testHours, start)
	q := taskqueue.New()
	reg := NewRegistry(st, clk, q)

	if err := reg.Bootstrap(ctx); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	comp, _ := st.GetComponentByName(ctx, domain.PreparationIntroduction)
	if st.CountStates("u2", comp.ID) != 0 {
		t.Fatalf("rehydrate must not re-run onboarding's on-enter schedule")
	}
}

func TestOnUserTriggerUnknownUserIsError(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err := reg.OnUserTrigger(context.Background(), "ghost", domain.RelapseDialog); err == nil {
		t.Fatalf("expected error dispatching to an unregistered user")
	}
}

func TestBroadcastNewDayContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	l := time.UTC
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, l)
	reg, st := newTestRegistry(t, start)

	for _, id := range []string{"u1", "u2"} {
		u := domain.User{ID: id, StartDate: start, QuitDate: start.AddDate(0, 0, 31), PreferredDaypart: domain.Morning}
		st.PutUser(&u)
		if err := reg.Enroll(ctx, u); err != nil {
			t.Fatalf("Enroll(%s): %v", id, err)
		}
	}

	failures := reg.BroadcastNewDay(ctx, start.AddDate(0, 0, 1))
	if failures != 0 {
		t.Fatalf("failures = %d, want 0 for two healthy users", failures)
	}
}
