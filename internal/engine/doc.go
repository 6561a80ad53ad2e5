// Package engine implements the cart synchronization engine.
//
// The engine keeps one client-visible cart consistent with a remote commerce
// backend while many triggers (quantity steppers, checkout forms, background
// polling) fire concurrently.
//
// ARCHITECTURE:
//
// Reducer-Driven State:
// All state lives in a StateStore. It changes only through Dispatch with one
// of a closed set of actions (SetLoading, SetCart, SetError, UpdateCart,
// ClearCart, SetInventory). Reduce is pure apart from the logical clock, which
// makes merge and rollback behavior easy to reason about and to log.
//
// Operation Serializer:
// Every mutating public action first tries to acquire a single guard. The
// guard never blocks: if another mutation is in flight the new call is
// dropped, not queued. Callers that need "last intent wins" debounce before
// calling. The guard is released on every exit path.
//
// Action Flow:
//  1. Public action acquires the guard (or returns false)
//  2. Optional tentative dispatch (UpdateItem only)
//  3. Gateway call
//  4. Confirm (SetCart / UpdateCart), compensate (restore one line) or resync
//  5. Cache invalidation on success
//  6. Inventory reconciliation when the (variant, quantity) key changed
//  7. Guard released
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// State.LastUpdated comes from Clock.Next() and advances only on SetCart,
// applied UpdateCart and ClearCart, so consumers can cheaply detect that
// nothing relevant changed.
//
// Terminal Carts:
// A cart carrying a completion marker is never displayed as mutable. Any
// action that observes one clears local state and the stored cart id.
//
// Error Kinds:
// Gateway failures are classified once at the boundary (GatewayError.Kind).
// Only CompleteOrder returns errors; all other actions report through
// State.Error.
package engine
