package fsm

import (
	"context"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/store"
)

// Tracking waits out the minimum track-behavior period before moving to
// goal setting.
type Tracking struct{ BaseState }

func (Tracking) Tag() domain.PhaseStateTag { return domain.StateTracking }

func (Tracking) OnNewDay(ctx context.Context, c *Controller, today time.Time) (Transition, error) {
	day := c.clk.InterventionDay(c.User(), today)
	if day < domain.TrackingDurationDays {
		return Keep(), nil
	}

	comp, err := c.st.GetComponentByName(ctx, domain.FutureSelfShort)
	if err != nil {
		return Keep(), &store.ErrPersistence{Op: "GetComponentByName", Err: err}
	}
	if comp == nil {
		return Keep(), &store.ErrNotFound{Kind: "component", ID: string(domain.FutureSelfShort)}
	}

	done, err := c.st.GetCompletion(ctx, c.User().ID, comp.ID)
	if err != nil {
		return Keep(), &store.ErrPersistence{Op: "GetCompletion", Err: err}
	}
	if !done {
		return Keep(), nil
	}
	return MoveTo(GoalsSetting{}), nil
}
