// Package store is the Persistence Gateway: typed CRUD over the durable
// store for users, preferences, the component catalog, per-user component
// states, and controller phase state. It is pure — no scheduling or
// transport logic lives here.
package store

import (
	"context"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// Store is the full contract the controller depends on. PostgresStore is
// the production implementation; MemoryStore backs tests and the
// single-user bootstrap mode.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	GetComponentByName(ctx context.Context, name domain.ComponentName) (*domain.Component, error)
	GetComponentByID(ctx context.Context, id int64) (*domain.Component, error)

	// LastState returns the most-recently-touched row for (user, component),
	// or nil if none exists.
	LastState(ctx context.Context, userID string, componentID int64) (*domain.ComponentState, error)

	// GetCompletion reports whether the most recent row for (user,
	// component) has Completed set.
	GetCompletion(ctx context.Context, userID string, componentID int64) (bool, error)

	// StoreState appends (or upserts, see DESIGN.md) a ComponentState row.
	StoreState(ctx context.Context, state *domain.ComponentState) error

	// GetNextPlannedDate resolves the date a component should fire at next:
	// the most recent stored NextPlannedDate if one is set and in the
	// future, otherwise tomorrow at the user's preferred hour (computed by
	// preferredHour). This fallback is hour-only; weekday alignment for
	// recurring content (weekly reflection) is computed separately by the
	// fsm package's nextWeeklySlot, not here (see DESIGN.md).
	GetNextPlannedDate(ctx context.Context, userID string, componentID int64, now time.Time, preferredHour func(time.Time) time.Time) (time.Time, error)

	CurrentPhaseState(ctx context.Context, userID string) (domain.PhaseStateTag, error)
	SetPhaseState(ctx context.Context, userID string, tag domain.PhaseStateTag) error

	ExecutionWeek(ctx context.Context, userID string) (int, error)
	SetExecutionWeek(ctx context.Context, userID string, week int) error
}

// ErrPersistence wraps any transient storage error (connection refused,
// context deadline, driver error). Callers never branch on the concrete
// driver error type, only on this wrapper via errors.As.
type ErrPersistence struct {
	Op  string
	Err error
}

func (e *ErrPersistence) Error() string {
	return "persistence failure during " + e.Op + ": " + e.Err.Error()
}

func (e *ErrPersistence) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned for an unknown user or component.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return e.Kind + " not found: " + e.ID
}

// NotFound marks ErrNotFound as a client-fault error: callers such as the
// HTTP ingress layer use this to distinguish "reject, don't retry" from a
// transient ErrPersistence.
func (e *ErrNotFound) NotFound() bool { return true }
