// Package taskqueue is the Delayed Task Queue: a min-heap ordered by ETA
// that fires scheduled dialog/notification triggers at the right wall-clock
// moment, with cancellation and a worker loop that dispatches through a
// circuit breaker and rate limiter before handing off to the Trigger Sink.
package taskqueue

import "time"

// Handle is an opaque cancellation token returned by Push and stored on
// domain.ComponentState.TaskHandle so a later event can cancel a pending
// fire (e.g. a dialog completing early cancels its own reminder).
type Handle string

// Task is one scheduled unit of work: "tell the FSM that component fired
// for this user at ETA". The queue only orders and delivers; it has no
// opinion about what firing means.
type Task struct {
	Handle      Handle
	UserID      string
	ComponentID int64
	ETA         time.Time
	// Canceled is set by Cancel and checked by the worker before dispatch,
	// so a task already popped off the heap can still be skipped.
	canceled bool
}
