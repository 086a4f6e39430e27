package fsm

import (
	"context"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Onboarding walks a freshly enrolled user through the introductory
// dialogs before tracking begins.
type Onboarding struct{ BaseState }

func (Onboarding) Tag() domain.PhaseStateTag { return domain.StateOnboarding }

func (Onboarding) Run(ctx context.Context, c *Controller) (Transition, error) {
	if err := c.PlanAndStore(ctx, domain.PreparationIntroduction, nil); err != nil {
		return Keep(), err
	}
	return Keep(), nil
}

func (Onboarding) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	switch component.Name {
	case domain.PreparationIntroduction:
		return Keep(), c.PlanAndStore(ctx, domain.ProfileCreation, nil)

	case domain.ProfileCreation:
		return Keep(), c.PlanAndStore(ctx, domain.MedicationTalk, nil)

	case domain.MedicationTalk:
		if err := c.PlanAndStore(ctx, domain.TrackBehavior, nil); err != nil {
			return Keep(), err
		}
		end := c.clk.DateAtOffset(c.User(), domain.FutureSelfIntroDay)
		return Keep(), c.ScheduleDailyRange(ctx, domain.TrackNotification, c.clk.Today(), end)

	case domain.TrackBehavior:
		return Keep(), c.PlanAndStore(ctx, domain.FutureSelfLong, nil)

	case domain.FutureSelfLong:
		target := c.clk.AtPreferredHour(c.User(), c.clk.DateAtOffset(c.User(), domain.FutureSelfIntroDay))
		if err := c.PlanAndStore(ctx, domain.FutureSelfShort, &target); err != nil {
			return Keep(), err
		}
		return MoveTo(Tracking{}), nil

	default:
		return BaseState{}.OnDialogCompleted(ctx, c, component)
	}
}
