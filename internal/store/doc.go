// Package store provides SQLite-backed local storage for cart sessions.
//
// It holds two things:
//   - Cart slots: the id of the active cart per session ("local cart
//     storage"), cleared when the engine observes a completed cart
//   - Dispatch log: an append-only record of every state dispatch, for
//     auditing and for resuming the logical clock of a session
//
// A Session implements engine.CartIDStore and engine.DispatchLog.
//
// # Ordering
//
//   - All ordering uses seq INTEGER (dispatch sequence), NEVER timestamps
//   - All log queries include: ORDER BY seq ASC, id ASC
//
// # Connections
//
// Pragmas are go-sqlite3 DSN parameters, so every pooled connection gets
// WAL journaling, synchronous=NORMAL, a 5 second busy timeout and foreign
// keys. Schema upgrades are tracked in PRAGMA user_version.
package store
