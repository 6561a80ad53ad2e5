package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cartsync/internal/engine"
)

// Dispatch is one row of the dispatch log.
type Dispatch struct {
	Session string `json:"session"`
	engine.DispatchRecord
}

// ReadDispatches returns the dispatch log of a session in seq order.
// An empty session returns every session's log, ordered by session then seq.
func (s *Store) ReadDispatches(ctx context.Context, session string) ([]Dispatch, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if session == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT session, seq, action, cart_id, last_updated, payload
			FROM dispatch_log
			ORDER BY session ASC, seq ASC, id ASC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT session, seq, action, cart_id, last_updated, payload
			FROM dispatch_log
			WHERE session = ?
			ORDER BY seq ASC, id ASC
		`, session)
	}
	if err != nil {
		return nil, fmt.Errorf("read dispatches: %w", err)
	}
	return scanDispatches(rows)
}

// ReadCartDispatches returns every dispatch that left cartID in state.
func (s *Store) ReadCartDispatches(ctx context.Context, cartID string) ([]Dispatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session, seq, action, cart_id, last_updated, payload
		FROM dispatch_log
		WHERE cart_id = ?
		ORDER BY seq ASC, id ASC
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("read cart dispatches: %w", err)
	}
	return scanDispatches(rows)
}

// Sessions returns the names of all sessions with a cart slot or a logged
// dispatch, sorted.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session FROM cart_slots
		UNION
		SELECT session FROM dispatch_log
		ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sessions: %w", err)
	}
	return out, nil
}

func scanDispatches(rows *sql.Rows) ([]Dispatch, error) {
	defer rows.Close()

	var out []Dispatch
	for rows.Next() {
		var (
			d       Dispatch
			payload string
		)
		if err := rows.Scan(&d.Session, &d.Seq, &d.Action, &d.CartID, &d.LastUpdated, &payload); err != nil {
			return nil, fmt.Errorf("scan dispatch: %w", err)
		}
		d.Payload = []byte(payload)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dispatches: %w", err)
	}
	return out, nil
}
