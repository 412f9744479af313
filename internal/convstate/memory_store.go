package convstate

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps conversation state in process memory. Used in tests and
// single-instance deployments.
type MemoryStore struct {
	clock func() time.Time

	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore creates an in-memory state store.
func NewMemoryStore(clock func() time.Time) *MemoryStore {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{clock: clock, states: make(map[string]State)}
}

// Get returns the session's state, creating a GREETING record on first read.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		state = defaultState(sessionID, s.clock())
		s.states[sessionID] = state
	}
	return cloneState(state), nil
}

// Apply merges the patch into the session's state.
func (s *MemoryStore) Apply(_ context.Context, sessionID string, patch Patch) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[sessionID]
	if !ok {
		state = defaultState(sessionID, s.clock())
	}
	state = merge(state, patch, s.clock())
	s.states[sessionID] = state
	return cloneState(state), nil
}

// Delete removes the session's state. Explicit teardown only.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

func cloneState(state State) State {
	state.PatientInfo = mergeMap(state.PatientInfo, nil)
	state.BookingRequest = mergeMap(state.BookingRequest, nil)
	state.DrugQueries = appendUnique(state.DrugQueries, nil)
	return state
}
