package fsm

import (
	"context"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Closing is terminal: one closing dialog, then the controller has nothing
// further to schedule for this user.
type Closing struct{ BaseState }

func (Closing) Tag() domain.PhaseStateTag { return domain.StateClosing }

func (Closing) Run(ctx context.Context, c *Controller) (Transition, error) {
	return Keep(), c.PlanAndStore(ctx, domain.ClosingDialog, nil)
}

func (Closing) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	if component.Name == domain.ClosingDialog {
		return Keep(), nil
	}
	return BaseState{}.OnDialogCompleted(ctx, c, component)
}
