package fsm

import (
	"context"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Relapse handles the lapse/relapse dialog variants; its sole branch point
// is whether the user chose a new quit date during the conversation.
type Relapse struct{ BaseState }

func (Relapse) Tag() domain.PhaseStateTag { return domain.StateRelapse }

func (Relapse) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	if !domain.RelapseComponents[component.Name] {
		return BaseState{}.OnDialogCompleted(ctx, c, component)
	}

	if err := c.RefreshUser(ctx); err != nil {
		return Keep(), err
	}
	user := c.User()
	today := c.clk.Today()

	if user.QuitDate.After(today) {
		beforeQuit := c.clk.AtPreferredHour(user, user.QuitDate.AddDate(0, 0, -1))
		if err := c.PlanAndStore(ctx, domain.BeforeQuitNotification, &beforeQuit); err != nil {
			return Keep(), err
		}
		quitDay := c.clk.AtPreferredHour(user, user.QuitDate)
		if err := c.PlanAndStore(ctx, domain.QuitDateNotification, &quitDay); err != nil {
			return Keep(), err
		}
		return MoveTo(Buffer{}), nil
	}

	return MoveTo(ExecutionRun{}), nil
}
