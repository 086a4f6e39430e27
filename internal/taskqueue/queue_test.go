package taskqueue

import (
	"testing"
	"time"
)

func TestPopReadyOrdersByETA(t *testing.T) {
	q := New()
	now := time.Now()

	q.Push("u1", 3, now.Add(3*time.Second))
	q.Push("u1", 1, now.Add(1*time.Second))
	q.Push("u1", 2, now.Add(2*time.Second))

	ready := q.PopReady(now.Add(10 * time.Second))
	if len(ready) != 3 {
		t.Fatalf("len(ready) = %d, want 3", len(ready))
	}
	for i, want := range []int64{1, 2, 3} {
		if ready[i].ComponentID != want {
			t.Fatalf("ready[%d].ComponentID = %d, want %d", i, ready[i].ComponentID, want)
		}
	}
}

func TestPopReadyOnlyDueTasks(t *testing.T) {
	q := New()
	now := time.Now()

	q.Push("u1", 1, now.Add(-time.Second))
	q.Push("u1", 2, now.Add(time.Hour))

	ready := q.PopReady(now)
	if len(ready) != 1 || ready[0].ComponentID != 1 {
		t.Fatalf("ready = %+v, want only component 1", ready)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 remaining", q.Len())
	}
}

func TestCancelSkipsDelivery(t *testing.T) {
	q := New()
	now := time.Now()

	handle := q.Push("u1", 1, now.Add(-time.Second))
	q.Cancel(handle)

	ready := q.PopReady(now)
	if len(ready) != 0 {
		t.Fatalf("ready = %+v, want none (canceled)", ready)
	}
}

func TestCancelUnknownHandleIsNoop(t *testing.T) {
	q := New()
	q.Cancel(Handle("does-not-exist"))
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}
