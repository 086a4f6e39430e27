package fsm

import (
	"context"
	"time"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/store"
)

// ExecutionRun is the 12-week core phase: weekly reflections, the week
// counter anchored at quit_date, and the relapse escape hatch.
type ExecutionRun struct{ BaseState }

func (ExecutionRun) Tag() domain.PhaseStateTag { return domain.StateExecutionRun }

func (ExecutionRun) Run(ctx context.Context, c *Controller) (Transition, error) {
	week, err := c.st.ExecutionWeek(ctx, c.User().ID)
	if err != nil {
		if _, isNotFound := err.(*store.ErrNotFound); !isNotFound {
			return Keep(), &store.ErrPersistence{Op: "ExecutionWeek", Err: err}
		}
	}
	if week < 1 {
		if err := c.st.SetExecutionWeek(ctx, c.User().ID, 1); err != nil {
			return Keep(), &store.ErrPersistence{Op: "SetExecutionWeek", Err: err}
		}
	}
	return Keep(), nil
}

func (ExecutionRun) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	switch component.Name {
	case domain.ExecutionIntroduction:
		return Keep(), c.PlanAndStore(ctx, domain.GeneralActivity, nil)

	case domain.GeneralActivity:
		return Keep(), c.PlanAndStore(ctx, domain.WeeklyReflection, nil)

	case domain.WeeklyReflection:
		week, err := c.st.ExecutionWeek(ctx, c.User().ID)
		if err != nil {
			return Keep(), &store.ErrPersistence{Op: "ExecutionWeek", Err: err}
		}
		switch {
		case week == domain.WeekFutureSelfShortA || week == domain.WeekFutureSelfShortB:
			return Keep(), c.PlanAndStore(ctx, domain.FutureSelfShort, nil)
		case week == domain.ExecutionWeeksTotal:
			return MoveTo(Closing{}), nil
		default:
			next := nextWeeklySlot(c, c.clk.Today())
			return Keep(), c.PlanAndStore(ctx, domain.WeeklyReflection, &next)
		}

	case domain.FutureSelfShort:
		next := nextWeeklySlot(c, c.clk.Today())
		return Keep(), c.PlanAndStore(ctx, domain.WeeklyReflection, &next)

	default:
		return BaseState{}.OnDialogCompleted(ctx, c, component)
	}
}

func (ExecutionRun) OnUserTrigger(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	if err := c.PlanAndStore(ctx, component.Name, nil); err != nil {
		return Keep(), err
	}
	if component.Name == domain.RelapseDialog {
		return MoveTo(Relapse{}), nil
	}
	return Keep(), nil
}

func (ExecutionRun) OnNewDay(ctx context.Context, c *Controller, today time.Time) (Transition, error) {
	user := c.User()
	if !clock.IsNewWeek(today, user.QuitDate) {
		return Keep(), nil
	}
	week := clock.DaysBetween(user.QuitDate, today)/7 + 1
	if week < 1 {
		week = 1
	}
	if week > domain.ExecutionWeeksTotal {
		week = domain.ExecutionWeeksTotal
	}
	if err := c.st.SetExecutionWeek(ctx, user.ID, week); err != nil {
		return Keep(), &store.ErrPersistence{Op: "SetExecutionWeek", Err: err}
	}
	return Keep(), nil
}

// nextWeeklySlot returns the preferred-weekday occurrence one week after
// from, at the user's preferred hour.
func nextWeeklySlot(c *Controller, from time.Time) time.Time {
	user := c.User()
	base := from.AddDate(0, 0, 7)
	delta := (int(user.PreferredWeekday) - int(base.Weekday()) + 7) % 7
	day := base.AddDate(0, 0, delta)
	return c.clk.AtPreferredHour(user, day)
}
