package engine

import "sync/atomic"

// Serializer is the in-flight guard shared by all cart mutations.
//
// Acquire never blocks. While the guard is held, new attempts are dropped,
// not queued: queuing would let stale intents land after fresh totals.
// The zero value is ready to use.
type Serializer struct {
	held    atomic.Bool
	dropped atomic.Int64
}

// TryAcquire takes the guard if it is free.
// Returns false (and counts a drop) if another operation holds it.
func (s *Serializer) TryAcquire() bool {
	if s.held.CompareAndSwap(false, true) {
		return true
	}
	s.dropped.Add(1)
	return false
}

// Release frees the guard.
func (s *Serializer) Release() {
	s.held.Store(false)
}

// Held reports whether an operation is in flight.
func (s *Serializer) Held() bool {
	return s.held.Load()
}

// Dropped returns how many attempts have been dropped.
func (s *Serializer) Dropped() int64 {
	return s.dropped.Load()
}

// Run calls fn while holding the guard and reports whether fn ran.
// The guard is released however fn exits, panics included.
func (s *Serializer) Run(fn func()) bool {
	if !s.TryAcquire() {
		return false
	}
	defer s.Release()
	fn()
	return true
}
