// Package fsm is the per-user phase-state machine: the core of the
// controller. One State implementation per phase-state tag, dispatched
// through Controller, which owns the persistence gateway, clock, and task
// queue handles a state needs to plan and store work.
package fsm

import (
	"context"
	"log"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Transition is returned by every event handler. A nil Next means stay in
// the current state; a non-nil Next tells the Controller to replace the
// live state and invoke the new state's Run.
type Transition struct {
	Next State
}

// Keep is the no-transition result.
func Keep() Transition { return Transition{} }

// MoveTo transitions to next, whose Run will be invoked once the current
// handler returns.
func MoveTo(next State) Transition { return Transition{Next: next} }

// State is one phase-state tag's behavior. All four event methods are
// logically optional — BaseState supplies no-op defaults so a concrete
// state only overrides what it actually reacts to.
type State interface {
	Tag() domain.PhaseStateTag
	Run(ctx context.Context, c *Controller) (Transition, error)
	OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error)
	OnDialogRescheduled(ctx context.Context, c *Controller, component *domain.Component, newDate time.Time) (Transition, error)
	OnUserTrigger(ctx context.Context, c *Controller, component *domain.Component) (Transition, error)
	OnNewDay(ctx context.Context, c *Controller, today time.Time) (Transition, error)
}

// BaseState implements State with defaults matching the spec's
// IllegalTransition policy (logged at INFO, ignored) and the generic
// rescheduling behavior shared by every phase. Concrete states embed it.
type BaseState struct{}

func (BaseState) Run(ctx context.Context, c *Controller) (Transition, error) {
	return Keep(), nil
}

func (BaseState) OnDialogCompleted(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	log.Printf("fsm: user=%s state=%s ignoring unexpected dialog-completed for %s", c.user.ID, c.state.Tag(), component.Name)
	return Keep(), nil
}

// OnDialogRescheduled is generic: persist the new planned date and cancel
// the previous handle. The cancellation itself happens in Controller
// before this is invoked; this just re-plans.
func (BaseState) OnDialogRescheduled(ctx context.Context, c *Controller, component *domain.Component, newDate time.Time) (Transition, error) {
	if err := c.PlanAndStore(ctx, component.Name, &newDate); err != nil {
		return Keep(), err
	}
	return Keep(), nil
}

// OnUserTrigger is generic across every phase: a user-initiated trigger
// is planned and stored immediately, regardless of which component fired
// it. States that need an additional side effect (ExecutionRun's relapse
// escape hatch) layer it on top of this call rather than replacing it.
func (BaseState) OnUserTrigger(ctx context.Context, c *Controller, component *domain.Component) (Transition, error) {
	return Keep(), c.PlanAndStore(ctx, component.Name, nil)
}

func (BaseState) OnNewDay(ctx context.Context, c *Controller, today time.Time) (Transition, error) {
	return Keep(), nil
}
