// Package registry is the per-user controller directory: it owns the
// live map of user ID to fsm.Controller, serializes event delivery per
// user, and rehydrates controllers from persisted phase state on cold
// start.
package registry

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/haltline/intervention-controller/internal/clock"
	"github.com/haltline/intervention-controller/internal/domain"
	"github.com/haltline/intervention-controller/internal/fsm"
	"github.com/haltline/intervention-controller/internal/store"
	"github.com/haltline/intervention-controller/internal/taskqueue"
	"github.com/haltline/intervention-controller/internal/trigger"
)

// Registry holds one live fsm.Controller per enrolled user and enforces
// that events for a given user are applied one at a time.
type Registry struct {
	st    store.Store
	clk   *clock.Clock
	queue *taskqueue.Queue

	mu          sync.RWMutex
	controllers map[string]*fsm.Controller
	locks       map[string]*sync.Mutex
}

// NewRegistry builds an empty registry. Call Bootstrap before serving
// traffic to rehydrate controllers for already-enrolled users.
func NewRegistry(st store.Store, clk *clock.Clock, queue *taskqueue.Queue) *Registry {
	return &Registry{
		st:          st,
		clk:         clk,
		queue:       queue,
		controllers: make(map[string]*fsm.Controller),
		locks:       make(map[string]*sync.Mutex),
	}
}

// Bootstrap loads every known user and rehydrates their controller at
// its persisted phase state. It never invokes Run: a rehydrated
// controller is positioned at its current state but does not re-fire
// that state's on-enter schedule, since that already happened on first
// entry (see fsm.Controller.Run doc comment).
func (r *Registry) Bootstrap(ctx context.Context) error {
	users, err := r.st.ListUsers(ctx)
	if err != nil {
		return &store.ErrPersistence{Op: "ListUsers", Err: err}
	}
	for _, u := range users {
		tag, err := r.st.CurrentPhaseState(ctx, u.ID)
		if err != nil {
			return &store.ErrPersistence{Op: "CurrentPhaseState", Err: err}
		}
		r.register(*u, fsm.StateFromTag(tag))
	}
	log.Printf("registry: rehydrated %d controllers", len(users))
	return nil
}

func (r *Registry) register(u domain.User, initial fsm.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controllers[u.ID] = fsm.NewController(r.st, r.clk, r.queue, u, initial)
	r.locks[u.ID] = &sync.Mutex{}
}

// Enroll registers a brand-new user, sets its phase state to onboarding,
// and runs the onboarding state's on-enter schedule.
func (r *Registry) Enroll(ctx context.Context, u domain.User) error {
	if err := r.st.SetPhaseState(ctx, u.ID, domain.StateOnboarding); err != nil {
		return &store.ErrPersistence{Op: "SetPhaseState", Err: err}
	}
	r.register(u, fsm.Onboarding{})

	ctrl, err := r.controllerFor(u.ID)
	if err != nil {
		return err
	}
	lock := r.lockFor(u.ID)
	lock.Lock()
	defer lock.Unlock()
	return ctrl.Run(ctx)
}

func (r *Registry) controllerFor(userID string) (*fsm.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctrl, ok := r.controllers[userID]
	if !ok {
		return nil, &store.ErrNotFound{Kind: "user", ID: userID}
	}
	return ctrl, nil
}

func (r *Registry) lockFor(userID string) *sync.Mutex {
	r.mu.RLock()
	l, ok := r.locks[userID]
	r.mu.RUnlock()
	if ok {
		return l
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.locks[userID]; ok {
		return l
	}
	l = &sync.Mutex{}
	r.locks[userID] = l
	return l
}

// withUser serializes access to one user's controller so concurrent
// webhook deliveries for the same user never interleave mid-transition.
func (r *Registry) withUser(userID string, fn func(*fsm.Controller) error) error {
	ctrl, err := r.controllerFor(userID)
	if err != nil {
		return err
	}
	lock := r.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctrl)
}

func (r *Registry) OnDialogCompleted(ctx context.Context, userID string, name domain.ComponentName) error {
	return r.withUser(userID, func(ctrl *fsm.Controller) error {
		return ctrl.OnDialogCompleted(ctx, name)
	})
}

func (r *Registry) OnDialogRescheduled(ctx context.Context, userID string, name domain.ComponentName, newDate time.Time) error {
	return r.withUser(userID, func(ctrl *fsm.Controller) error {
		return ctrl.OnDialogRescheduled(ctx, name, newDate)
	})
}

func (r *Registry) OnUserTrigger(ctx context.Context, userID string, name domain.ComponentName) error {
	return r.withUser(userID, func(ctrl *fsm.Controller) error {
		return ctrl.OnUserTrigger(ctx, name)
	})
}

// userIDs returns a snapshot of every registered user ID, safe to range
// over without holding the registry lock for the duration of a broadcast.
func (r *Registry) userIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	return ids
}

// BroadcastNewDay delivers a new-day tick to every registered user,
// continuing past individual failures so one user's persistence error
// does not stall the rest of the population. It logs each failure and
// returns the count of users for which the tick failed.
func (r *Registry) BroadcastNewDay(ctx context.Context, today time.Time) int {
	failures := 0
	for _, userID := range r.userIDs() {
		err := r.withUser(userID, func(ctrl *fsm.Controller) error {
			return ctrl.OnNewDay(ctx, today)
		})
		if err != nil {
			failures++
			log.Printf("registry: new-day tick failed for user %s: %v", userID, err)
		}
	}
	return failures
}

// Dispatch adapts the registry and a trigger.Sink into the
// taskqueue.Dispatch signature the worker calls for each ready task: it
// resolves the fired component and delivers it to the front end with
// retry, independent of the owning user's FSM state.
func (r *Registry) Dispatch(sink trigger.Sink, maxElapsed time.Duration) taskqueue.Dispatch {
	return func(ctx context.Context, t *taskqueue.Task) error {
		comp, err := r.st.GetComponentByID(ctx, t.ComponentID)
		if err != nil {
			return fmt.Errorf("resolve component %d: %w", t.ComponentID, err)
		}
		if comp == nil {
			return fmt.Errorf("component %d not found", t.ComponentID)
		}
		return trigger.DeliverWithRetry(ctx, sink, t.UserID, comp, maxElapsed)
	}
}
