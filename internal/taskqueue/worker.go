package taskqueue

import (
	"context"
	"log"
	"time"
)

// Dispatch is called once per ready task. It is supplied by the registry
// and resolves to the per-user FSM's OnDialogCompleted-equivalent trigger
// delivery; the worker knows nothing about the FSM or the Trigger Sink
// directly.
type Dispatch func(ctx context.Context, t *Task) error

// Worker drains the Queue on a fixed tick, admitting ready tasks through a
// CircuitBreaker and DispatchLimiter before calling Dispatch.
type Worker struct {
	queue   *Queue
	breaker *CircuitBreaker
	limiter *DispatchLimiter
	dispatch Dispatch
	tick    time.Duration
}

func NewWorker(queue *Queue, breaker *CircuitBreaker, limiter *DispatchLimiter, dispatch Dispatch, tick time.Duration) *Worker {
	if tick <= 0 {
		tick = time.Second
	}
	return &Worker{queue: queue, breaker: breaker, limiter: limiter, dispatch: dispatch, tick: tick}
}

// Run blocks, polling the queue every tick until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.drain(ctx, now)
		}
	}
}

func (w *Worker) drain(ctx context.Context, now time.Time) {
	for _, t := range w.queue.PopReady(now) {
		if !w.breaker.ShouldAdmit(w.queue.Len(), 0) {
			log.Printf("taskqueue: circuit open, requeueing task for user %s", t.UserID)
			w.queue.Push(t.UserID, t.ComponentID, now.Add(w.tick))
			continue
		}
		if !w.limiter.Allow() {
			w.queue.Push(t.UserID, t.ComponentID, now.Add(w.tick))
			continue
		}

		if err := w.dispatch(ctx, t); err != nil {
			log.Printf("taskqueue: dispatch failed for user %s component %d: %v", t.UserID, t.ComponentID, err)
			w.breaker.RecordFailure()
			continue
		}
		w.breaker.RecordSuccess()
	}
}
