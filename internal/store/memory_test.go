package store

import (
	"context"
	"testing"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

func TestMemoryStoreCatalogSeeded(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	comp, err := s.GetComponentByName(ctx, domain.PreparationIntroduction)
	if err != nil || comp == nil {
		t.Fatalf("GetComponentByName: %v, %v", comp, err)
	}
	byID, err := s.GetComponentByID(ctx, comp.ID)
	if err != nil || byID == nil || byID.Name != comp.Name {
		t.Fatalf("GetComponentByID round-trip failed: %v, %v", byID, err)
	}

	if _, err := s.GetComponentByName(ctx, domain.ComponentName("nonexistent")); err != nil {
		t.Fatalf("unexpected error for unknown component: %v", err)
	}
	missing, _ := s.GetComponentByName(ctx, domain.ComponentName("nonexistent"))
	if missing != nil {
		t.Fatalf("expected nil for unknown component")
	}
}

func TestMemoryStoreLastStateLatestWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	comp, _ := s.GetComponentByName(ctx, domain.ProfileCreation)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	first := &domain.ComponentState{UserID: "u1", ComponentID: comp.ID, Completed: false, LastTouched: base}
	if err := s.StoreState(ctx, first); err != nil {
		t.Fatalf("StoreState first: %v", err)
	}
	second := &domain.ComponentState{UserID: "u1", ComponentID: comp.ID, Completed: true, LastTouched: base.Add(time.Hour)}
	if err := s.StoreState(ctx, second); err != nil {
		t.Fatalf("StoreState second: %v", err)
	}

	last, err := s.LastState(ctx, "u1", comp.ID)
	if err != nil {
		t.Fatalf("LastState: %v", err)
	}
	if last == nil || !last.Completed {
		t.Fatalf("LastState = %+v, want the later completed row", last)
	}

	done, err := s.GetCompletion(ctx, "u1", comp.ID)
	if err != nil || !done {
		t.Fatalf("GetCompletion = %v, %v, want true", done, err)
	}
}

func TestMemoryStorePhaseStateRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	u := &domain.User{ID: "u2"}
	s.PutUser(u)

	tag, err := s.CurrentPhaseState(ctx, "u2")
	if err != nil || tag != domain.StateOnboarding {
		t.Fatalf("CurrentPhaseState = %v, %v, want onboarding", tag, err)
	}

	if err := s.SetPhaseState(ctx, "u2", domain.StateTracking); err != nil {
		t.Fatalf("SetPhaseState: %v", err)
	}
	tag, err = s.CurrentPhaseState(ctx, "u2")
	if err != nil || tag != domain.StateTracking {
		t.Fatalf("CurrentPhaseState after set = %v, %v, want tracking", tag, err)
	}
}

func TestMemoryStoreUnknownUserPhaseState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.CurrentPhaseState(ctx, "ghost"); err == nil {
		t.Fatalf("expected ErrNotFound for unknown user")
	}
}

func TestMemoryStoreExecutionWeek(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.PutUser(&domain.User{ID: "u3"})

	if err := s.SetExecutionWeek(ctx, "u3", 5); err != nil {
		t.Fatalf("SetExecutionWeek: %v", err)
	}
	week, err := s.ExecutionWeek(ctx, "u3")
	if err != nil || week != 5 {
		t.Fatalf("ExecutionWeek = %d, %v, want 5", week, err)
	}
}

func TestMemoryStoreGetNextPlannedDateFallsBackToTomorrow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	comp, _ := s.GetComponentByName(ctx, domain.GoalSetting)

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	preferredHour := func(d time.Time) time.Time {
		y, m, day := d.Date()
		return time.Date(y, m, day, 10, 0, 0, 0, d.Location())
	}

	got, err := s.GetNextPlannedDate(ctx, "u4", comp.ID, now, preferredHour)
	if err != nil {
		t.Fatalf("GetNextPlannedDate: %v", err)
	}
	want := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("GetNextPlannedDate = %v, want %v", got, want)
	}
}
