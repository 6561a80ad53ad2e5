package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// StateStore is the single state container of an engine.
//
// All mutation goes through Dispatch. Readers get deep copies, so a snapshot
// handed to a consumer never changes underneath it.
//
// Thread-safety: all methods are safe for concurrent use. Subscribers and the
// dispatch log are called outside the lock, in dispatch order per goroutine.
type StateStore struct {
	mu          sync.Mutex
	state       State
	clock       *Clock
	seq         int64
	log         DispatchLog
	logger      *slog.Logger
	subscribers map[int]func(State)
	nextSubID   int
}

// NewStateStore creates an empty store. log may be nil. The initial
// LastUpdated is the clock's current value, so a resumed clock carries over.
func NewStateStore(clock *Clock, log DispatchLog, logger *slog.Logger) *StateStore {
	if clock == nil {
		clock = NewClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{
		state:       State{LastUpdated: clock.Current()},
		clock:       clock,
		log:         log,
		logger:      logger,
		subscribers: make(map[int]func(State)),
	}
}

// Dispatch reduces action into the state and returns a copy of the new state.
func (s *StateStore) Dispatch(ctx context.Context, action Action) State {
	s.mu.Lock()
	next := Reduce(s.state, action, s.clock)
	s.state = next
	s.seq++
	seq := s.seq
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	snapshot := next.Clone()

	if s.log != nil {
		rec := DispatchRecord{
			Seq:         seq,
			Action:      ActionName(action),
			LastUpdated: snapshot.LastUpdated,
		}
		if snapshot.Cart != nil {
			rec.CartID = snapshot.Cart.ID
		}
		if payload, err := json.Marshal(action); err == nil {
			rec.Payload = payload
		}
		if err := s.log.RecordDispatch(ctx, rec); err != nil {
			// Log and continue: the dispatch log is an audit trail, not state.
			s.logger.Warn("dispatch log write failed",
				"seq", seq,
				"action", rec.Action,
				"error", err,
			)
		}
	}

	for _, fn := range subs {
		fn(snapshot.Clone())
	}

	return snapshot
}

// State returns a copy of the current state.
func (s *StateStore) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Seq returns the number of dispatches so far.
func (s *StateStore) Seq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Subscribe registers fn to receive every new state.
// The returned function removes the subscription.
func (s *StateStore) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}
