package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cartsync/internal/engine"
)

// Session is one storefront session's view of the store: its cart slot and
// its slice of the dispatch log.
//
// Dispatch sequences restart at 1 for every engine. A Session offsets them by
// the highest seq already logged for the session when it was opened, so a
// resumed session appends after its previous run.
type Session struct {
	store *Store
	name  string
	base  int64
}

var (
	_ engine.CartIDStore = (*Session)(nil)
	_ engine.DispatchLog = (*Session)(nil)
)

// OpenSession returns the session called name, creating nothing until the
// first write.
func (s *Store) OpenSession(ctx context.Context, name string) (*Session, error) {
	if name == "" {
		return nil, errors.New("open session: empty name")
	}
	var base sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM dispatch_log WHERE session = ?", name,
	).Scan(&base)
	if err != nil {
		return nil, fmt.Errorf("open session %s: %w", name, err)
	}
	return &Session{store: s, name: name, base: base.Int64}, nil
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// CartID returns the stored active cart id, or "" if none.
func (s *Session) CartID(ctx context.Context) (string, error) {
	var id string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT cart_id FROM cart_slots WHERE session = ?", s.name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cart id: %w", err)
	}
	return id, nil
}

// SetCartID stores cartID as the session's active cart.
func (s *Session) SetCartID(ctx context.Context, cartID string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO cart_slots (session, cart_id) VALUES (?, ?)
		ON CONFLICT(session) DO UPDATE SET
			cart_id = excluded.cart_id,
			version = cart_slots.version + 1
	`, s.name, cartID)
	if err != nil {
		return fmt.Errorf("write cart id: %w", err)
	}
	return nil
}

// ClearCartID forgets the session's active cart.
func (s *Session) ClearCartID(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM cart_slots WHERE session = ?", s.name); err != nil {
		return fmt.Errorf("clear cart id: %w", err)
	}
	return nil
}

// RecordDispatch appends rec to the dispatch log.
// Uses ON CONFLICT DO NOTHING for idempotency - a repeated seq is ignored.
func (s *Session) RecordDispatch(ctx context.Context, rec engine.DispatchRecord) error {
	payload := string(rec.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO dispatch_log (session, seq, action, cart_id, last_updated, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session, seq) DO NOTHING
	`,
		s.name,
		s.base+rec.Seq,
		rec.Action,
		rec.CartID,
		rec.LastUpdated,
		payload,
	)
	if err != nil {
		return fmt.Errorf("record dispatch %d: %w", rec.Seq, err)
	}
	return nil
}

// LastUpdated returns the highest logical clock value logged for the
// session, for resuming an engine clock with engine.NewClockAt.
func (s *Session) LastUpdated(ctx context.Context) (int64, error) {
	var v sql.NullInt64
	err := s.store.db.QueryRowContext(ctx,
		"SELECT MAX(last_updated) FROM dispatch_log WHERE session = ?", s.name,
	).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read last updated: %w", err)
	}
	return v.Int64, nil
}

// DeleteSession removes the cart slot and dispatch log of the session called
// name. Deleting an unknown session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM cart_slots WHERE session = ?",
		"DELETE FROM dispatch_log WHERE session = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, name); err != nil {
			return fmt.Errorf("delete session %s: %w", name, err)
		}
	}
	return tx.Commit()
}
