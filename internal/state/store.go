package state

import (
	"reflect"
	"sync"
	"time"
)

// Handler is a state-change subscriber. It receives the snapshot that just
// became current.
type Handler func(s *Snapshot)

// Store owns the current snapshot and the subscriber list. All mutation goes
// through named setters that call modify; reads go through State.
type Store struct {
	mu      sync.Mutex
	current *Snapshot

	handlerMu sync.Mutex
	handlers  []Handler
}

// NewStore creates a store with an empty snapshot for the given identity.
func NewStore(userID, displayName string) *Store {
	return &Store{
		current: &Snapshot{
			UserID:        userID,
			DisplayName:   displayName,
			Calls:         make(map[string]*Call),
			IncomingCalls: make(map[string]*IncomingCall),
			ChatThreads:   make(map[string]*ChatThread),
			LatestErrors:  make(map[string]OperationError),
			DeviceManager: DeviceManager{
				UnparentedViews: make(map[string]LocalVideoStream),
			},
		},
	}
}

// State returns the current snapshot. The returned value is immutable; it is
// safe to hold across suspension points.
func (s *Store) State() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnStateChange registers a change handler. Registering the same handler
// twice is an idempotent no-op.
func (s *Store) OnStateChange(h Handler) {
	if h == nil {
		return
	}
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	ptr := reflect.ValueOf(h).Pointer()
	for _, existing := range s.handlers {
		if reflect.ValueOf(existing).Pointer() == ptr {
			return
		}
	}
	s.handlers = append(s.handlers, h)
}

// OffStateChange removes a previously registered handler. Removing an
// unregistered handler is a no-op.
func (s *Store) OffStateChange(h Handler) {
	if h == nil {
		return
	}
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	ptr := reflect.ValueOf(h).Pointer()
	for i, existing := range s.handlers {
		if reflect.ValueOf(existing).Pointer() == ptr {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
			return
		}
	}
}

// modify runs the mutator against a clone of the current snapshot, swaps the
// clone in, and notifies every registered subscriber exactly once. The
// mutator runs to completion before any notification fires; notification
// order is unspecified.
func (s *Store) modify(mutate func(draft *Snapshot)) {
	s.mu.Lock()
	draft := s.current.clone()
	mutate(draft)
	s.current = draft
	s.mu.Unlock()

	s.handlerMu.Lock()
	handlers := make([]Handler, len(s.handlers))
	copy(handlers, s.handlers)
	s.handlerMu.Unlock()

	for _, h := range handlers {
		h(draft)
	}
}

// TeeErrorToState records err under the given operation name (last write
// wins) and returns it unchanged, so the failure reaches both the snapshot
// and the original caller. A nil error is returned untouched with no state
// change.
func (s *Store) TeeErrorToState(operation string, err error) error {
	if err == nil {
		return nil
	}
	s.modify(func(draft *Snapshot) {
		draft.LatestErrors[operation] = OperationError{
			Operation: operation,
			Err:       err,
			Timestamp: time.Now(),
		}
	})
	return err
}
