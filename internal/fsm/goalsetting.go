package fsm

import (
	"context"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/domain"
)

// GoalsSetting plans the goal-setting dialog and, on its completion, the
// remaining preparation-phase content plus the PA notification fan-out.
type GoalsSetting struct{ BaseState }

func (GoalsSetting) Tag() domain.PhaseStateTag { return domain.StateGoalsSetting }

func (GoalsSetting) Run(ctx context.Context, c *Controller) (Transition, error) {
	user := c.User()
	target := c.clk.DateAtOffset(user, domain.GoalSettingDay)
	if !c.clk.Today().Before(target) {
		return Keep(), c.PlanAndStore(ctx, domain.GoalSetting, nil)
	}
	at := c.clk.AtPreferredHour(user, target)
	return Keep(), c.PlanAndStore(ctx, domain.GoalSetting, &at)
}

func (GoalsSetting) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	switch component.Name {
	case domain.GoalSetting:
		user := c.User()

		if err := c.PlanAndStore(ctx, domain.FirstAidKitVideo, nil); err != nil {
			return Keep(), err
		}

		prepDays := clock.DaysBetween(user.StartDate, user.QuitDate)
		if prepDays >= domain.PreparationGADay {
			at := c.clk.AtPreferredHour(user, c.clk.DateAtOffset(user, domain.PreparationGADay))
			if err := c.PlanAndStore(ctx, domain.GeneralActivity, &at); err != nil {
				return Keep(), err
			}
		}
		if prepDays == domain.MaxPreparationDuration {
			at := c.clk.AtPreferredHour(user, c.clk.DateAtOffset(user, domain.MaxPreparationDuration))
			if err := c.PlanAndStore(ctx, domain.GeneralActivity, &at); err != nil {
				return Keep(), err
			}
		}

		quitAt := c.clk.AtPreferredHour(user, user.QuitDate)
		if err := c.PlanAndStore(ctx, domain.ExecutionIntroduction, &quitAt); err != nil {
			return Keep(), err
		}

		executionEnd := user.QuitDate.AddDate(0, 0, domain.ExecutionDurationDays)
		return Keep(), c.ScheduleDailyRange(ctx, domain.PANotification, c.clk.Today(), executionEnd)

	case domain.FirstAidKitVideo:
		return MoveTo(Buffer{}), nil

	default:
		return BaseState{}.OnDialogCompleted(ctx, c, component)
	}
}
