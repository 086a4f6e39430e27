package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haltline/intervention-controller/internal/domain"
)

// MemoryStore holds the in-memory state of users, the catalog, component
// states, and controller state. It implements Store and is used by tests
// and by the single-user bootstrap mode.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	components map[domain.ComponentName]*domain.Component
	byID       map[int64]*domain.Component
	states     []*domain.ComponentState // append-only, latest-wins by LastTouched
	controller map[string]*domain.ControllerState
	nextStateID int64
}

// NewMemoryStore seeds the catalog from domain.Catalog and returns an
// empty store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		users:      make(map[string]*domain.User),
		components: make(map[domain.ComponentName]*domain.Component),
		byID:       make(map[int64]*domain.Component),
		controller: make(map[string]*domain.ControllerState),
	}
	for i, c := range domain.Catalog {
		comp := c
		comp.ID = int64(i + 1)
		s.components[comp.Name] = &comp
		s.byID[comp.ID] = &comp
	}
	return s
}

// PutUser registers a user directly (test/bootstrap helper — not part of
// the Store interface, mirrors the teacher's UpsertAgent shape).
func (s *MemoryStore) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uc := *u
	s.users[u.ID] = &uc
	if _, ok := s.controller[u.ID]; !ok {
		s.controller[u.ID] = &domain.ControllerState{UserID: u.ID, PhaseState: domain.StateOnboarding}
	}
}

// CountStates reports how many ComponentState rows exist for (userID,
// componentID) — a test helper, not part of Store.
func (s *MemoryStore) CountStates(userID string, componentID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.states {
		if st.UserID == userID && st.ComponentID == componentID {
			n++
		}
	}
	return n
}

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	uc := *u
	return &uc, nil
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		uc := *u
		out = append(out, &uc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetComponentByName(ctx context.Context, name domain.ComponentName) (*domain.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[name]
	if !ok {
		return nil, nil
	}
	cc := *c
	return &cc, nil
}

func (s *MemoryStore) GetComponentByID(ctx context.Context, id int64) (*domain.Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	cc := *c
	return &cc, nil
}

func (s *MemoryStore) LastState(ctx context.Context, userID string, componentID int64) (*domain.ComponentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastStateLocked(userID, componentID), nil
}

func (s *MemoryStore) lastStateLocked(userID string, componentID int64) *domain.ComponentState {
	var latest *domain.ComponentState
	for _, st := range s.states {
		if st.UserID != userID || st.ComponentID != componentID {
			continue
		}
		if latest == nil || st.LastTouched.After(latest.LastTouched) {
			latest = st
		}
	}
	if latest == nil {
		return nil
	}
	cc := *latest
	return &cc
}

func (s *MemoryStore) GetCompletion(ctx context.Context, userID string, componentID int64) (bool, error) {
	st, _ := s.LastState(ctx, userID, componentID)
	if st == nil {
		return false, nil
	}
	return st.Completed, nil
}

func (s *MemoryStore) StoreState(ctx context.Context, state *domain.ComponentState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.LastTouched.IsZero() {
		state.LastTouched = time.Now()
	}
	s.nextStateID++
	sc := *state
	sc.ID = s.nextStateID
	s.states = append(s.states, &sc)
	state.ID = sc.ID
	return nil
}

func (s *MemoryStore) GetNextPlannedDate(ctx context.Context, userID string, componentID int64, now time.Time, preferredHour func(time.Time) time.Time) (time.Time, error) {
	s.mu.RLock()
	last := s.lastStateLocked(userID, componentID)
	s.mu.RUnlock()

	if last != nil && !last.NextPlannedDate.IsZero() {
		return last.NextPlannedDate, nil
	}
	return preferredHour(now.AddDate(0, 0, 1)), nil
}

func (s *MemoryStore) CurrentPhaseState(ctx context.Context, userID string) (domain.PhaseStateTag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.controller[userID]
	if !ok {
		return "", &ErrNotFound{Kind: "controller_state", ID: userID}
	}
	return cs.PhaseState, nil
}

func (s *MemoryStore) SetPhaseState(ctx context.Context, userID string, tag domain.PhaseStateTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.controller[userID]
	if !ok {
		cs = &domain.ControllerState{UserID: userID}
		s.controller[userID] = cs
	}
	cs.PhaseState = tag
	return nil
}

func (s *MemoryStore) ExecutionWeek(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.controller[userID]
	if !ok {
		return 0, &ErrNotFound{Kind: "controller_state", ID: userID}
	}
	return cs.ExecutionWeek, nil
}

func (s *MemoryStore) SetExecutionWeek(ctx context.Context, userID string, week int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.controller[userID]
	if !ok {
		cs = &domain.ControllerState{UserID: userID}
		s.controller[userID] = cs
	}
	cs.ExecutionWeek = week
	return nil
}
