package fsm

import (
	"context"
	"time"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/store"
	"github.com/haltline/intervention-controller/internal/taskqueue"
)

// Controller is the live per-user instance the registry dispatches events
// to. It owns nothing global: the persistence gateway, clock, and task
// queue are handed in at construction by the composition root.
type Controller struct {
	st    store.Store
	clk   *clock.Clock
	queue *taskqueue.Queue
	user  domain.User
	state State
}

// NewController builds a controller already positioned at initial. Callers
// on cold start pass the state recovered from CurrentPhaseState; on
// enrollment they pass a fresh Onboarding.
func NewController(st store.Store, clk *clock.Clock, queue *taskqueue.Queue, user domain.User, initial State) *Controller {
	return &Controller{st: st, clk: clk, queue: queue, user: user, state: initial}
}

func (c *Controller) User() domain.User               { return c.user }
func (c *Controller) StateTag() domain.PhaseStateTag { return c.state.Tag() }

// RefreshUser re-reads the user row, picking up any out-of-band changes
// made during a dialog (e.g. a new quit_date chosen mid-relapse-dialog).
func (c *Controller) RefreshUser(ctx context.Context) error {
	u, err := c.st.GetUser(ctx, c.user.ID)
	if err != nil {
		return &store.ErrPersistence{Op: "GetUser", Err: err}
	}
	if u == nil {
		return &store.ErrNotFound{Kind: "user", ID: c.user.ID}
	}
	c.user = *u
	return nil
}

// tagToPhase maps a phase-state tag to the coarse phase id ComponentState
// rows are tagged with. Closing is recorded under the execution phase id
// since it is the execution phase's terminal step (see DESIGN.md).
func tagToPhase(tag domain.PhaseStateTag) domain.Phase {
	switch tag {
	case domain.StateRelapse:
		return domain.PhaseLapse
	case domain.StateExecutionRun, domain.StateClosing:
		return domain.PhaseExecution
	default:
		return domain.PhasePreparation
	}
}

func (c *Controller) resolveComponent(ctx context.Context, name domain.ComponentName) (*domain.Component, error) {
	comp, err := c.st.GetComponentByName(ctx, name)
	if err != nil {
		return nil, &store.ErrPersistence{Op: "GetComponentByName", Err: err}
	}
	if comp == nil {
		return nil, &store.ErrNotFound{Kind: "component", ID: string(name)}
	}
	return comp, nil
}

// PlanAndStore is the one procedure every phase-state's scheduling goes
// through: resolve the component, compute (or accept) a planned date,
// submit it to the task queue, and persist the resulting ComponentState
// row. A nil plannedDate means "fire now".
func (c *Controller) PlanAndStore(ctx context.Context, name domain.ComponentName, plannedDate *time.Time) error {
	comp, err := c.resolveComponent(ctx, name)
	if err != nil {
		return err
	}

	now := c.clk.Now()
	var eta time.Time
	if plannedDate != nil {
		eta = *plannedDate
	} else {
		eta, err = c.st.GetNextPlannedDate(ctx, c.user.ID, comp.ID, now, func(d time.Time) time.Time {
			return c.clk.AtPreferredHour(c.user, d)
		})
		if err != nil {
			return &store.ErrPersistence{Op: "GetNextPlannedDate", Err: err}
		}
	}

	var handle taskqueue.Handle
	if plannedDate == nil && eta.Before(now.Add(time.Second)) {
		handle = c.queue.Push(c.user.ID, comp.ID, now)
	} else {
		handle = c.queue.Push(c.user.ID, comp.ID, eta)
	}

	row := &domain.ComponentState{
		UserID:          c.user.ID,
		ComponentID:     comp.ID,
		Phase:           tagToPhase(c.state.Tag()),
		Completed:       false,
		LastPart:        0,
		NextPlannedDate: eta,
		TaskHandle:      string(handle),
		LastTouched:     now,
	}
	if err := c.st.StoreState(ctx, row); err != nil {
		return &store.ErrPersistence{Op: "StoreState", Err: err}
	}
	return nil
}

// ScheduleDailyRange submits one PlanAndStore-style schedule per civil day
// from (start, end] inclusive of end, used by onboarding's TRACK_NOTIFICATION
// fan-out and goals-setting's PA_NOTIFICATION fan-out.
func (c *Controller) ScheduleDailyRange(ctx context.Context, name domain.ComponentName, start, end time.Time) error {
	comp, err := c.resolveComponent(ctx, name)
	if err != nil {
		return err
	}
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		at := c.clk.AtPreferredHour(c.user, d)
		handle := c.queue.Push(c.user.ID, comp.ID, at)
		row := &domain.ComponentState{
			UserID:          c.user.ID,
			ComponentID:     comp.ID,
			Phase:           tagToPhase(c.state.Tag()),
			Completed:       false,
			NextPlannedDate: at,
			TaskHandle:      string(handle),
			LastTouched:     c.clk.Now(),
		}
		if err := c.st.StoreState(ctx, row); err != nil {
			return &store.ErrPersistence{Op: "StoreState", Err: err}
		}
	}
	return nil
}

func (c *Controller) markCompleted(ctx context.Context, comp *domain.Component) error {
	last, err := c.st.LastState(ctx, c.user.ID, comp.ID)
	if err != nil {
		return &store.ErrPersistence{Op: "LastState", Err: err}
	}
	lastPart := 0
	if last != nil {
		lastPart = last.LastPart
	}
	row := &domain.ComponentState{
		UserID:      c.user.ID,
		ComponentID: comp.ID,
		Phase:       tagToPhase(c.state.Tag()),
		Completed:   true,
		LastPart:    lastPart,
		LastTouched: c.clk.Now(),
	}
	if err := c.st.StoreState(ctx, row); err != nil {
		return &store.ErrPersistence{Op: "StoreState", Err: err}
	}
	return nil
}

func (c *Controller) cancelPending(ctx context.Context, comp *domain.Component) error {
	last, err := c.st.LastState(ctx, c.user.ID, comp.ID)
	if err != nil {
		return &store.ErrPersistence{Op: "LastState", Err: err}
	}
	if last != nil && last.TaskHandle != "" {
		c.queue.Cancel(taskqueue.Handle(last.TaskHandle))
	}
	return nil
}

// apply runs fn against the live state, persists and follows any
// transition it returns, and keeps following transitions (invoking Run on
// each freshly-entered state) until one settles on Keep.
func (c *Controller) apply(ctx context.Context, fn func(State) (Transition, error)) error {
	t, err := fn(c.state)
	if err != nil {
		return err
	}
	for t.Next != nil {
		c.state = t.Next
		if err := c.st.SetPhaseState(ctx, c.user.ID, c.state.Tag()); err != nil {
			return &store.ErrPersistence{Op: "SetPhaseState", Err: err}
		}
		t, err = c.state.Run(ctx, c)
		if err != nil {
			return err
		}
	}
	return nil
}

// Run invokes the current state's on-enter behavior. Used once at
// enrollment; never invoked automatically on rehydrate (see registry).
func (c *Controller) Run(ctx context.Context) error {
	return c.apply(ctx, func(s State) (Transition, error) { return s.Run(ctx, c) })
}

func (c *Controller) OnDialogCompleted(ctx context.Context, name domain.ComponentName) error {
	comp, err := c.resolveComponent(ctx, name)
	if err != nil {
		return err
	}
	if err := c.markCompleted(ctx, comp); err != nil {
		return err
	}
	return c.apply(ctx, func(s State) (Transition, error) { return s.OnDialogCompleted(ctx, c, comp) })
}

func (c *Controller) OnDialogRescheduled(ctx context.Context, name domain.ComponentName, newDate time.Time) error {
	comp, err := c.resolveComponent(ctx, name)
	if err != nil {
		return err
	}
	if err := c.cancelPending(ctx, comp); err != nil {
		return err
	}
	return c.apply(ctx, func(s State) (Transition, error) { return s.OnDialogRescheduled(ctx, c, comp, newDate) })
}

func (c *Controller) OnUserTrigger(ctx context.Context, name domain.ComponentName) error {
	comp, err := c.resolveComponent(ctx, name)
	if err != nil {
		return err
	}
	return c.apply(ctx, func(s State) (Transition, error) { return s.OnUserTrigger(ctx, c, comp) })
}

func (c *Controller) OnNewDay(ctx context.Context, today time.Time) error {
	return c.apply(ctx, func(s State) (Transition, error) { return s.OnNewDay(ctx, c, today) })
}
