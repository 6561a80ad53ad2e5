package store

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/commerce"
	"github.com/roach88/cartsync/internal/engine"
	"github.com/roach88/cartsync/internal/testutil"
)

func openSession(t *testing.T, st *Store, name string) *Session {
	t.Helper()
	sess, err := st.OpenSession(context.Background(), name)
	require.NoError(t, err)
	return sess
}

func TestOpenSession_EmptyName(t *testing.T) {
	st := createTestStore(t)
	_, err := st.OpenSession(context.Background(), "")
	require.Error(t, err)
}

func TestSession_CartIDLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t, createTestStore(t), "web")

	id, err := sess.CartID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id, "fresh session has no cart")

	require.NoError(t, sess.SetCartID(ctx, "cart_1"))
	require.NoError(t, sess.SetCartID(ctx, "cart_2"))
	id, err = sess.CartID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart_2", id)

	require.NoError(t, sess.ClearCartID(ctx))
	id, err = sess.CartID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	// Clearing an empty slot is not an error.
	require.NoError(t, sess.ClearCartID(ctx))
}

func TestSession_SlotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	web := openSession(t, st, "web")
	kiosk := openSession(t, st, "kiosk")

	require.NoError(t, web.SetCartID(ctx, "cart_web"))
	require.NoError(t, kiosk.SetCartID(ctx, "cart_kiosk"))
	require.NoError(t, web.ClearCartID(ctx))

	id, err := kiosk.CartID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart_kiosk", id)

	sessions, err := st.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kiosk"}, sessions)
}

func TestSession_RecordDispatch(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	sess := openSession(t, st, "web")

	require.NoError(t, sess.RecordDispatch(ctx, engine.DispatchRecord{
		Seq: 1, Action: "set_loading", LastUpdated: 1, Payload: []byte(`{"loading":true}`),
	}))
	require.NoError(t, sess.RecordDispatch(ctx, engine.DispatchRecord{
		Seq: 2, Action: "set_cart", CartID: "cart_1", LastUpdated: 2,
	}))
	// Replaying a seq is ignored.
	require.NoError(t, sess.RecordDispatch(ctx, engine.DispatchRecord{
		Seq: 2, Action: "clear_cart", LastUpdated: 9,
	}))

	got, err := st.ReadDispatches(ctx, "web")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "set_loading", got[0].Action)
	assert.JSONEq(t, `{"loading":true}`, string(got[0].Payload))
	assert.Equal(t, "set_cart", got[1].Action)
	assert.Equal(t, "cart_1", got[1].CartID)
	assert.JSONEq(t, `{}`, string(got[1].Payload))

	last, err := sess.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), last)

	byCart, err := st.ReadCartDispatches(ctx, "cart_1")
	require.NoError(t, err)
	require.Len(t, byCart, 1)
	assert.Equal(t, int64(2), byCart[0].Seq)
}

func TestSession_ReopenOffsetsSeq(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)

	first := openSession(t, st, "web")
	require.NoError(t, first.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "set_loading", LastUpdated: 1}))
	require.NoError(t, first.RecordDispatch(ctx, engine.DispatchRecord{Seq: 2, Action: "set_loading", LastUpdated: 2}))

	// A new engine restarts its sequence at 1.
	second := openSession(t, st, "web")
	require.NoError(t, second.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "clear_cart", LastUpdated: 3}))

	got, err := st.ReadDispatches(ctx, "web")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{got[0].Seq, got[1].Seq, got[2].Seq})
	assert.Equal(t, "clear_cart", got[2].Action)
}

func TestSession_LastUpdatedEmpty(t *testing.T) {
	sess := openSession(t, createTestStore(t), "web")
	last, err := sess.LastUpdated(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	gone := openSession(t, st, "gone")
	kept := openSession(t, st, "kept")
	require.NoError(t, gone.SetCartID(ctx, "cart_1"))
	require.NoError(t, gone.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "set_cart", CartID: "cart_1", LastUpdated: 1}))
	require.NoError(t, kept.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "set_loading"}))

	require.NoError(t, st.DeleteSession(ctx, "gone"))
	require.NoError(t, st.DeleteSession(ctx, "never_existed"))

	sessions, err := st.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, sessions)

	reopened := openSession(t, st, "gone")
	id, err := reopened.CartID(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
	last, err := reopened.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestReadDispatches_AllSessions(t *testing.T) {
	ctx := context.Background()
	st := createTestStore(t)
	b := openSession(t, st, "b")
	a := openSession(t, st, "a")
	require.NoError(t, b.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "set_error", LastUpdated: 1}))
	require.NoError(t, a.RecordDispatch(ctx, engine.DispatchRecord{Seq: 1, Action: "set_loading", LastUpdated: 1}))

	got, err := st.ReadDispatches(ctx, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Session)
	assert.Equal(t, "b", got[1].Session)
}

// TestSession_BacksEngine runs an engine against the in-process backend with
// the session as both its cart id store and its dispatch log, then resumes
// from the same database.
func TestSession_BacksEngine(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cartsync.db")
	backend := commerce.New(commerce.Catalog{
		Region:   commerce.Region{ID: "reg_eu", CurrencyCode: "eur"},
		Variants: []commerce.Variant{{ID: "var_a", ProductID: "prod_a", Price: 1000, Stock: 5, ManageInventory: true}},
	}, commerce.WithIDGenerator(testutil.NewSequentialIDs()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := Open(dbPath)
	require.NoError(t, err)
	sess := openSession(t, st, "web")

	eng := engine.New(backend,
		engine.WithLogger(logger),
		engine.WithCartIDStore(sess),
		engine.WithDispatchLog(sess),
	)
	require.True(t, eng.AddItem(ctx, "var_a", 2, nil))
	cartID := eng.Cart().ID

	stored, err := sess.CartID(ctx)
	require.NoError(t, err)
	assert.Equal(t, cartID, stored)

	log, err := st.ReadDispatches(ctx, "web")
	require.NoError(t, err)
	require.NotEmpty(t, log)
	assert.Equal(t, "set_loading", log[0].Action)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(log[0].Payload, &payload))
	assert.Equal(t, true, payload["loading"])

	last, err := sess.LastUpdated(ctx)
	require.NoError(t, err)
	assert.Equal(t, eng.Snapshot().LastUpdated, last)
	require.NoError(t, st.Close())

	// Resume: the stored id hydrates a fresh engine and the clock continues.
	st, err = Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	sess = openSession(t, st, "web")
	last, err = sess.LastUpdated(ctx)
	require.NoError(t, err)

	resumed := engine.New(backend,
		engine.WithLogger(logger),
		engine.WithCartIDStore(sess),
		engine.WithDispatchLog(sess),
		engine.WithClock(engine.NewClockAt(last)),
	)
	resumed.RefreshCart(ctx, cart.ScopeFull)
	require.NotNil(t, resumed.Cart())
	assert.Equal(t, cartID, resumed.Cart().ID)
	assert.Greater(t, resumed.Snapshot().LastUpdated, last)

	full, err := st.ReadDispatches(ctx, "web")
	require.NoError(t, err)
	assert.Greater(t, len(full), len(log))
	for i := 1; i < len(full); i++ {
		assert.Greater(t, full[i].Seq, full[i-1].Seq)
	}
}
