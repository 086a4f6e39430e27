package taskqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestWorkerDispatchesReadyTasks(t *testing.T) {
	q := New()
	q.Push("u1", 1, time.Now().Add(-time.Second))

	var mu sync.Mutex
	var dispatched []int64
	done := make(chan struct{})

	dispatch := func(ctx context.Context, task *Task) error {
		mu.Lock()
		dispatched = append(dispatched, task.ComponentID)
		mu.Unlock()
		close(done)
		return nil
	}

	w := NewWorker(q, NewCircuitBreaker(100), NewDispatchLimiter(1000, 1000), dispatch, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go w.Run(ctx)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("dispatch was never called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(dispatched) != 1 || dispatched[0] != 1 {
		t.Fatalf("dispatched = %v, want [1]", dispatched)
	}
}

func TestWorkerRecordsFailureAndDoesNotBlockDrain(t *testing.T) {
	q := New()
	q.Push("u1", 7, time.Now().Add(-time.Second))

	breaker := NewCircuitBreaker(100)
	limiter := NewDispatchLimiter(1000, 1000)
	w := NewWorker(q, breaker, limiter, func(ctx context.Context, task *Task) error {
		return errors.New("downstream unavailable")
	}, time.Second)

	w.drain(context.Background(), time.Now())

	if breaker.GetState() != CircuitClosed {
		t.Fatalf("breaker state = %v, want still closed after a single failure", breaker.GetState())
	}
}

func TestWorkerRequeuesWhenLimiterExhausted(t *testing.T) {
	q := New()
	q.Push("u1", 9, time.Now().Add(-time.Second))

	limiter := NewDispatchLimiter(0.0001, 0)
	calls := 0
	w := NewWorker(q, NewCircuitBreaker(100), limiter, func(ctx context.Context, task *Task) error {
		calls++
		return nil
	}, time.Second)

	w.drain(context.Background(), time.Now())

	if calls != 0 {
		t.Fatalf("dispatch called %d times, want 0 (rate limited)", calls)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (requeued)", q.Len())
	}
}
