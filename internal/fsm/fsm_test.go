package fsm

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

func loc(t *testing.T) *time.Location {
	t.Helper()
	l, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return l
}

func newHarness(t *testing.T, user domain.User, now time.Time, initial State) (*Controller, *store.MemoryStore, *taskqueue.Queue, *clock.Clock) {
	t.Helper()
	clk := clock.NewFixed(now.Location(), testHours, now)
	st := store.NewMemoryStore()
	st.PutUser(&user)
	q := taskqueue.New()
	ctrl := NewController(st, clk, q, user, initial)
	return ctrl, st, q, clk
}

func lastStateFor(t *testing.T, ctx context.Context, st *store.MemoryStore, userID string, name domain.ComponentName) *domain.ComponentState {
	t.Helper()
	comp, err := st.GetComponentByName(ctx, name)
	if err != nil || comp == nil {
		t.Fatalf("component %s not in catalog: %v", name, err)
	}
	row, err := st.LastState(ctx, userID, comp.ID)
	if err != nil {
		t.Fatalf("LastState(%s): %v", name, err)
	}
	return row
}

// Scenarios 1-3: happy onboarding through to goal setting dispatched
// immediately once the deadline has passed.
func TestOnboardingHappyFlowAndTrackingAdvance(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, l)
	quit := time.Date(2024, 6, 1, 0, 0, 0, 0, l)
	user := domain.User{
		ID:               "u1",
		StartDate:        start,
		QuitDate:         quit,
		PreferredWeekday: time.Wednesday,
		PreferredDaypart: domain.Morning,
	}

	ctrl, st, _, clk := newHarness(t, user, start, Onboarding{})

	if err := ctrl.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, name := range []domain.ComponentName{
		domain.PreparationIntroduction,
		domain.ProfileCreation,
		domain.MedicationTalk,
		domain.TrackBehavior,
		domain.FutureSelfLong,
	} {
		if err := ctrl.OnDialogCompleted(ctx, name); err != nil {
			t.Fatalf("OnDialogCompleted(%s): %v", name, err)
		}
	}

	if ctrl.StateTag() != domain.StateTracking {
		t.Fatalf("state = %s, want tracking", ctrl.StateTag())
	}

	fsShort := lastStateFor(t, ctx, st, "u1", domain.FutureSelfShort)
	wantFS := time.Date(2024, 5, 9, 10, 0, 0, 0, l)
	if fsShort == nil || !fsShort.NextPlannedDate.Equal(wantFS) {
		t.Fatalf("future_self_short planned = %v, want %v", fsShort, wantFS)
	}

	comp, _ := st.GetComponentByName(ctx, domain.TrackNotification)
	if got := st.CountStates("u1", comp.ID); got != 8 {
		t.Fatalf("expected 8 track_notification rows (2024-05-02..2024-05-09), got %d", got)
	}

	// Scenario 2: new-day before the deadline, with future_self_short not
	// yet completed, does not transition.
	clk.SetNow(time.Date(2024, 5, 9, 0, 0, 0, 0, l))
	if err := ctrl.OnNewDay(ctx, clk.Today()); err != nil {
		t.Fatalf("OnNewDay early: %v", err)
	}
	if ctrl.StateTag() != domain.StateTracking {
		t.Fatalf("state = %s, want still tracking", ctrl.StateTag())
	}

	if err := ctrl.OnDialogCompleted(ctx, domain.FutureSelfShort); err != nil {
		t.Fatalf("OnDialogCompleted(future_self_short): %v", err)
	}

	// Scenario 2/3: new-day at the deadline with completion in hand
	// transitions to goals-setting and, since today already >= start+9,
	// dispatches goal_setting immediately.
	clk.SetNow(time.Date(2024, 5, 10, 0, 0, 0, 0, l))
	if err := ctrl.OnNewDay(ctx, clk.Today()); err != nil {
		t.Fatalf("OnNewDay deadline: %v", err)
	}
	if ctrl.StateTag() != domain.StateGoalsSetting {
		t.Fatalf("state = %s, want goals-setting", ctrl.StateTag())
	}

	goalSetting := lastStateFor(t, ctx, st, "u1", domain.GoalSetting)
	if goalSetting == nil {
		t.Fatalf("expected a goal_setting row")
	}
	if goalSetting.NextPlannedDate.After(clk.Now()) {
		t.Fatalf("goal_setting planned in the future (%v), want immediate dispatch", goalSetting.NextPlannedDate)
	}
}

// Scenario 4: a relapse dialog completing with a pushed-out quit date
// schedules the before/quit-date notifications and returns to buffer.
func TestRelapseQuitDateReset(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	quit := time.Date(2024, 6, 1, 0, 0, 0, 0, l)
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, l)
	user := domain.User{
		ID:               "u2",
		StartDate:        time.Date(2024, 5, 1, 0, 0, 0, 0, l),
		QuitDate:         quit,
		PreferredDaypart: domain.Morning,
	}

	ctrl, st, _, _ := newHarness(t, user, today, ExecutionRun{})
	if err := st.SetExecutionWeek(ctx, "u2", 3); err != nil {
		t.Fatalf("seed execution week: %v", err)
	}

	if err := ctrl.OnUserTrigger(ctx, domain.RelapseDialog); err != nil {
		t.Fatalf("OnUserTrigger(relapse_dialog): %v", err)
	}
	if ctrl.StateTag() != domain.StateRelapse {
		t.Fatalf("state = %s, want relapse", ctrl.StateTag())
	}

	newQuit := time.Date(2024, 6, 20, 0, 0, 0, 0, l)
	updated := user
	updated.QuitDate = newQuit
	st.PutUser(&updated)

	if err := ctrl.OnDialogCompleted(ctx, domain.RelapseDialog); err != nil {
		t.Fatalf("OnDialogCompleted(relapse_dialog): %v", err)
	}
	if ctrl.StateTag() != domain.StateBuffer {
		t.Fatalf("state = %s, want buffer", ctrl.StateTag())
	}

	before := lastStateFor(t, ctx, st, "u2", domain.BeforeQuitNotification)
	wantBefore := time.Date(2024, 6, 19, 10, 0, 0, 0, l)
	if before == nil || !before.NextPlannedDate.Equal(wantBefore) {
		t.Fatalf("before_quit_notification = %v, want %v", before, wantBefore)
	}

	quitDay := lastStateFor(t, ctx, st, "u2", domain.QuitDateNotification)
	wantQuitDay := time.Date(2024, 6, 20, 10, 0, 0, 0, l)
	if quitDay == nil || !quitDay.NextPlannedDate.Equal(wantQuitDay) {
		t.Fatalf("quit_date_notification = %v, want %v", quitDay, wantQuitDay)
	}
}

// Scenario 5: the execution-week counter advances only on the weekly
// anniversary of quit_date.
func TestExecutionWeekAdvance(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	quit := time.Date(2024, 6, 5, 0, 0, 0, 0, l) // Wednesday
	user := domain.User{ID: "u3", StartDate: quit.AddDate(0, 0, -30), QuitDate: quit, PreferredDaypart: domain.Morning}

	ctrl, st, _, clk := newHarness(t, user, quit, ExecutionRun{})
	if err := st.SetExecutionWeek(ctx, "u3", 1); err != nil {
		t.Fatalf("seed week: %v", err)
	}

	clk.SetNow(time.Date(2024, 6, 12, 0, 0, 0, 0, l)) // Wednesday, +7d
	if err := ctrl.OnNewDay(ctx, clk.Today()); err != nil {
		t.Fatalf("OnNewDay +7d: %v", err)
	}
	week, err := st.ExecutionWeek(ctx, "u3")
	if err != nil || week != 2 {
		t.Fatalf("week after +7d = %d (err=%v), want 2", week, err)
	}

	clk.SetNow(time.Date(2024, 6, 13, 0, 0, 0, 0, l)) // Thursday
	if err := ctrl.OnNewDay(ctx, clk.Today()); err != nil {
		t.Fatalf("OnNewDay +8d: %v", err)
	}
	week, err = st.ExecutionWeek(ctx, "u3")
	if err != nil || week != 2 {
		t.Fatalf("week after +8d = %d (err=%v), want still 2", week, err)
	}
}

// Scenario 6: weekly-reflection completion branches on the execution week.
func TestWeeklyReflectionBranching(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	quit := time.Date(2024, 6, 5, 0, 0, 0, 0, l)
	today := quit.AddDate(0, 0, 14)
	user := domain.User{ID: "u4", StartDate: quit.AddDate(0, 0, -20), QuitDate: quit, PreferredWeekday: time.Wednesday, PreferredDaypart: domain.Morning}

	ctrl, st, _, _ := newHarness(t, user, today, ExecutionRun{})
	if err := st.SetExecutionWeek(ctx, "u4", 3); err != nil {
		t.Fatalf("seed week: %v", err)
	}

	if err := ctrl.OnDialogCompleted(ctx, domain.WeeklyReflection); err != nil {
		t.Fatalf("OnDialogCompleted(weekly_reflection) week 3: %v", err)
	}
	if ctrl.StateTag() != domain.StateExecutionRun {
		t.Fatalf("state = %s, want still execution-run", ctrl.StateTag())
	}
	fsShort := lastStateFor(t, ctx, st, "u4", domain.FutureSelfShort)
	if fsShort == nil {
		t.Fatalf("expected future_self_short scheduled at week 3")
	}

	if err := st.SetExecutionWeek(ctx, "u4", domain.ExecutionWeeksTotal); err != nil {
		t.Fatalf("set week 12: %v", err)
	}
	if err := ctrl.OnDialogCompleted(ctx, domain.WeeklyReflection); err != nil {
		t.Fatalf("OnDialogCompleted(weekly_reflection) week 12: %v", err)
	}
	if ctrl.StateTag() != domain.StateClosing {
		t.Fatalf("state = %s, want closing", ctrl.StateTag())
	}
}

// A user-initiated trigger outside of relapse still gets planned and
// stored immediately, in every phase — not just the ones that happen to
// override OnUserTrigger.
func TestOnUserTriggerPlansAndStoresGenerically(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, l)
	quit := time.Date(2024, 6, 1, 0, 0, 0, 0, l)
	user := domain.User{ID: "u5", StartDate: start, QuitDate: quit, PreferredDaypart: domain.Morning}

	ctrl, st, _, _ := newHarness(t, user, start, Tracking{})

	if err := ctrl.OnUserTrigger(ctx, domain.TrackBehavior); err != nil {
		t.Fatalf("OnUserTrigger(track_behavior): %v", err)
	}
	if ctrl.StateTag() != domain.StateTracking {
		t.Fatalf("state = %s, want still tracking", ctrl.StateTag())
	}

	row := lastStateFor(t, ctx, st, "u5", domain.TrackBehavior)
	if row == nil {
		t.Fatalf("expected track_behavior to be planned and stored on user trigger")
	}
}

// ExecutionRun additionally transitions to Relapse on a relapse-dialog
// trigger, on top of the same generic plan-and-store call every other
// trigger gets.
func TestExecutionRunUserTriggerNonRelapsePlansAndStays(t *testing.T) {
	ctx := context.Background()
	l := loc(t)
	quit := time.Date(2024, 6, 1, 0, 0, 0, 0, l)
	today := time.Date(2024, 6, 15, 0, 0, 0, 0, l)
	user := domain.User{ID: "u6", StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, l), QuitDate: quit, PreferredDaypart: domain.Morning}

	ctrl, st, _, _ := newHarness(t, user, today, ExecutionRun{})
	if err := st.SetExecutionWeek(ctx, "u6", 3); err != nil {
		t.Fatalf("seed execution week: %v", err)
	}

	if err := ctrl.OnUserTrigger(ctx, domain.GeneralActivity); err != nil {
		t.Fatalf("OnUserTrigger(general_activity): %v", err)
	}
	if ctrl.StateTag() != domain.StateExecutionRun {
		t.Fatalf("state = %s, want still execution-run", ctrl.StateTag())
	}
	row := lastStateFor(t, ctx, st, "u6", domain.GeneralActivity)
	if row == nil {
		t.Fatalf("expected general_activity to be planned and stored on user trigger")
	}
}
