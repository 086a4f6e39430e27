package taskqueue

import (
	"container/heap"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// etaHeap implements heap.Interface ordered strictly by ETA — no priority
// aging, no deadline tiebreak. The task due soonest is always the root.
type etaHeap []*Task

func (h etaHeap) Len() int            { return len(h) }
func (h etaHeap) Less(i, j int) bool  { return h[i].ETA.Before(h[j].ETA) }
func (h etaHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *etaHeap) Push(x interface{}) { *h = append(*h, x.(*Task)) }
func (h *etaHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}

// Queue is a thread-safe ETA-ordered delayed task queue. Tasks pushed with
// a future ETA are not visible to Pop until that ETA has been reached.
type Queue struct {
	mu      sync.Mutex
	h       etaHeap
	byHandle map[Handle]*Task
}

func New() *Queue {
	return &Queue{
		h:        make(etaHeap, 0),
		byHandle: make(map[Handle]*Task),
	}
}

func newHandle() Handle {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return Handle(hex.EncodeToString(b[:]))
}

// Push schedules userID/componentID to fire at eta and returns a Handle
// that can later be passed to Cancel.
func (q *Queue) Push(userID string, componentID int64, eta time.Time) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()

	t := &Task{Handle: newHandle(), UserID: userID, ComponentID: componentID, ETA: eta}
	heap.Push(&q.h, t)
	q.byHandle[t.Handle] = t
	return t.Handle
}

// Cancel marks a pending task as canceled. It is a no-op if the handle is
// unknown or the task has already been popped and delivered.
func (q *Queue) Cancel(handle Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.byHandle[handle]; ok {
		t.canceled = true
		delete(q.byHandle, handle)
	}
}

// PopReady removes and returns all tasks whose ETA is at or before now,
// skipping (and discarding) any that were canceled. It never blocks.
func (q *Queue) PopReady(now time.Time) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var ready []*Task
	for q.h.Len() > 0 && q.h[0].ETA.Before(now.Add(time.Nanosecond)) {
		t := heap.Pop(&q.h).(*Task)
		delete(q.byHandle, t.Handle)
		if t.canceled {
			continue
		}
		ready = append(ready, t)
	}
	return ready
}

// Peek returns the next-due task without removing it, or nil if empty.
func (q *Queue) Peek() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.h.Len() == 0 {
		return nil
	}
	return q.h[0]
}

// Len reports the number of tasks currently pending (including those
// already canceled but not yet swept by PopReady).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}
