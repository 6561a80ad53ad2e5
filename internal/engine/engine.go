package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cartsync/internal/cart"
)

// DefaultInventoryTTL is how long a batched inventory lookup stays cached.
const DefaultInventoryTTL = 30 * time.Second

// Engine owns the cart state of one session and exposes the cart actions.
//
// An Engine is created once per session and passed by reference to its
// consumers. There is no package-level state.
//
// Thread-safety model:
//   - Mutating actions: safe from any goroutine; concurrent attempts beyond
//     the first are dropped by the serializer
//   - RefreshCart, RefreshInventory, Snapshot, Derived: safe from any goroutine
type Engine struct {
	gateway      Gateway
	cache        Cache
	cartIDs      CartIDStore
	store        *StateStore
	guard        Serializer
	logger       *slog.Logger
	metrics      *Metrics
	countryCode  string
	inventoryTTL time.Duration

	// Set by options, consumed by New.
	clock       *Clock
	dispatchLog DispatchLog

	invMu        sync.Mutex
	inventoryKey string // InventoryKey of the cart at the last inventory refresh
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache sets the shared response cache.
// Default: no caching (every lookup computes).
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithCartIDStore sets the local cart storage.
// Default: in-memory storage (NewMemoryCartIDs).
func WithCartIDStore(s CartIDStore) Option {
	return func(e *Engine) { e.cartIDs = s }
}

// WithDispatchLog records every dispatch to log.
func WithDispatchLog(log DispatchLog) Option {
	return func(e *Engine) { e.dispatchLog = log }
}

// WithClock sets the logical clock behind State.LastUpdated.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithCountryCode sets the country code sent with AddToCart.
func WithCountryCode(code string) Option {
	return func(e *Engine) { e.countryCode = cart.NormalizeCountryCode(code) }
}

// WithInventoryTTL sets how long inventory lookups stay cached.
func WithInventoryTTL(d time.Duration) Option {
	return func(e *Engine) { e.inventoryTTL = d }
}

// New creates an Engine backed by gateway.
func New(gateway Gateway, opts ...Option) *Engine {
	e := &Engine{
		gateway:      gateway,
		cache:        passthroughCache{},
		cartIDs:      NewMemoryCartIDs(),
		logger:       slog.Default(),
		inventoryTTL: DefaultInventoryTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = NewStateStore(e.clock, e.dispatchLog, e.logger)
	return e
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	return e.store.State()
}

// Cart returns a copy of the current cart, or nil.
func (e *Engine) Cart() *cart.Cart {
	return e.store.State().Cart
}

// Derived returns the checkout state derived from the current cart.
func (e *Engine) Derived() cart.Checkout {
	return cart.Derive(e.store.State().Cart)
}

// Subscribe registers fn to receive every new state.
func (e *Engine) Subscribe(fn func(State)) (unsubscribe func()) {
	return e.store.Subscribe(fn)
}

// Busy reports whether a cart mutation is in flight.
func (e *Engine) Busy() bool {
	return e.guard.Held()
}

// ClearError empties the error slot.
func (e *Engine) ClearError(ctx context.Context) {
	e.store.Dispatch(ctx, SetError{})
}

// mutate runs fn under the serializer with the loading flag raised, then
// reconciles inventory. Returns false if the call was dropped.
func (e *Engine) mutate(ctx context.Context, op string, fn func(ctx context.Context) string) bool {
	if !e.guard.TryAcquire() {
		e.metrics.drop(op)
		e.logger.Debug("cart operation dropped: another mutation in flight", "op", op)
		return false
	}
	defer e.guard.Release()

	e.store.Dispatch(ctx, SetLoading{Loading: true})
	defer e.store.Dispatch(ctx, SetLoading{Loading: false})

	outcome := fn(ctx)
	e.metrics.observe(op, outcome)
	e.syncInventory(ctx)
	return true
}

// activeCartID returns the id of the cart in state, falling back to the
// local cart storage.
func (e *Engine) activeCartID(ctx context.Context) (string, error) {
	if c := e.store.State().Cart; c != nil {
		return c.ID, nil
	}
	return e.cartIDs.CartID(ctx)
}

// applyCart confirms a full cart from the gateway. A completed cart clears
// local state instead. Returns false if the cart was terminal.
func (e *Engine) applyCart(ctx context.Context, c *cart.Cart) bool {
	if c == nil {
		return true
	}
	if c.IsCompleted() {
		e.resetCart(ctx, c.ID)
		return false
	}
	e.store.Dispatch(ctx, SetCart{Cart: c})
	e.rememberCartID(ctx, c.ID)
	return true
}

// applyPatch merges a scoped projection. A completed projection clears local
// state instead. Returns false if the cart was terminal.
func (e *Engine) applyPatch(ctx context.Context, p cart.Patch) bool {
	if p.Completed() {
		e.resetCart(ctx, "")
		return false
	}
	if full, ok := p.(cart.Full); ok {
		return e.applyCart(ctx, full.Cart)
	}
	e.store.Dispatch(ctx, UpdateCart{Patch: p})
	return true
}

// resetCart clears local state and local cart storage after observing a
// terminal cart. This is an expected transition, logged at info level.
func (e *Engine) resetCart(ctx context.Context, cartID string) {
	if cartID == "" {
		if c := e.store.State().Cart; c != nil {
			cartID = c.ID
		}
	}
	e.store.Dispatch(ctx, ClearCart{})
	if err := e.cartIDs.ClearCartID(ctx); err != nil {
		e.logger.Warn("clear stored cart id failed", "cart_id", cartID, "error", err)
	}
	e.setInventoryKey("")
	e.cache.InvalidateAfterCartChange()
	e.logger.Info("cart completed, local state cleared", "cart_id", cartID)
}

func (e *Engine) rememberCartID(ctx context.Context, cartID string) {
	stored, err := e.cartIDs.CartID(ctx)
	if err == nil && stored == cartID {
		return
	}
	if err := e.cartIDs.SetCartID(ctx, cartID); err != nil {
		e.logger.Warn("store cart id failed", "cart_id", cartID, "error", err)
	}
}

// fail records err in the error slot.
func (e *Engine) fail(ctx context.Context, op string, err error) {
	f := failureFrom(err)
	e.store.Dispatch(ctx, SetError{Failure: f})
	e.logger.Warn("cart operation failed",
		"op", op,
		"kind", f.Kind.String(),
		"error", err,
	)
}

// resync forces a full refresh from the backend, then records err so the
// failure stays visible after the refresh. A refresh that finds the cart
// terminal clears local state first.
func (e *Engine) resync(ctx context.Context, op string, err error) string {
	if rerr := e.refresh(ctx, cart.ScopeFull); rerr != nil {
		if IsTerminalCart(rerr) {
			e.resetCart(ctx, "")
		} else {
			e.logger.Warn("resync failed", "op", op, "error", rerr)
		}
	}
	e.fail(ctx, op, err)
	return OutcomeError
}
