package commerce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
)

// Operation names used for call counting, failure injection and hooks.
const (
	OpRetrieveCart            = "retrieve_cart"
	OpRetrieveCartForAddress  = "retrieve_cart_for_address"
	OpRetrieveCartForShipping = "retrieve_cart_for_shipping"
	OpRetrieveCartForPayment  = "retrieve_cart_for_payment"
	OpAddToCart               = "add_to_cart"
	OpUpdateLineItem          = "update_line_item"
	OpDeleteLineItem          = "delete_line_item"
	OpSetAddresses            = "set_addresses"
	OpSetShippingMethod       = "set_shipping_method"
	OpInitiatePaymentSession  = "initiate_payment_session"
	OpSelectPaymentSession    = "select_payment_session"
	OpPlaceOrder              = "place_order"
	OpFetchInventory          = "fetch_cart_items_inventory"
)

// Backend is an in-memory commerce backend.
//
// Thread-safety: all methods are safe for concurrent use. Hooks run outside
// the backend lock, so a hook may block without stalling other callers.
type Backend struct {
	mu sync.Mutex

	ids    IDGenerator
	now    func() time.Time
	region Region

	variants  map[string]Variant
	shipping  map[string]ShippingOption
	providers map[string]bool

	carts     map[string]*cart.Cart
	orders    []engine.Order
	displayID int

	calls    map[string]int
	failures map[string][]error
	hooks    map[string]func(context.Context)
}

// Option configures a Backend.
type Option func(*Backend)

// WithIDGenerator sets the id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(b *Backend) { b.ids = g }
}

// WithNow sets the wall clock used for completion and order timestamps.
// Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// New creates a Backend selling from catalog.
func New(catalog Catalog, opts ...Option) *Backend {
	b := &Backend{
		ids:       UUIDv7Generator{},
		now:       time.Now,
		region:    catalog.Region,
		variants:  make(map[string]Variant, len(catalog.Variants)),
		shipping:  make(map[string]ShippingOption, len(catalog.ShippingOptions)),
		providers: make(map[string]bool, len(catalog.PaymentProviders)),
		carts:     make(map[string]*cart.Cart),
		calls:     make(map[string]int),
		failures:  make(map[string][]error),
		hooks:     make(map[string]func(context.Context)),
	}
	if b.region.ID == "" {
		b.region = DefaultRegion
	}
	for _, v := range catalog.Variants {
		b.variants[v.ID] = v
	}
	for _, o := range catalog.ShippingOptions {
		b.shipping[o.ID] = o
	}
	for _, p := range catalog.PaymentProviders {
		b.providers[p] = true
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SetStock changes the stock of a variant.
func (b *Backend) SetStock(variantID string, stock int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.variants[variantID]
	if !ok {
		return fmt.Errorf("set stock: variant %s not found", variantID)
	}
	v.Stock = stock
	b.variants[variantID] = v
	return nil
}

// Variant returns the catalog entry for variantID.
func (b *Backend) Variant(variantID string) (Variant, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.variants[variantID]
	return v, ok
}

// Calls returns how many times op was called.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// CallCounts returns a copy of all call counters.
func (b *Backend) CallCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.calls))
	for k, v := range b.calls {
		out[k] = v
	}
	return out
}

// ResetCalls zeroes all call counters.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.calls)
}

// FailNext makes the next call of op return err. Calls queue up: each
// FailNext affects exactly one call.
func (b *Backend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = append(b.failures[op], err)
}

// OnCall runs fn at the start of every call of op, before any state is read.
// A nil fn removes the hook.
func (b *Backend) OnCall(op string, fn func(ctx context.Context)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		delete(b.hooks, op)
		return
	}
	b.hooks[op] = fn
}

// StoredCart returns a copy of the backend's cart, or nil.
func (b *Backend) StoredCart(cartID string) *cart.Cart {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.carts[cartID].Clone()
}

// CompleteCart marks a cart completed without placing an order, as another
// session finishing checkout would.
func (b *Backend) CompleteCart(cartID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.carts[cartID]
	if !ok {
		return fmt.Errorf("complete cart: cart %s not found", cartID)
	}
	now := b.now()
	c.CompletedAt = &now
	return nil
}

// Orders returns the orders placed so far, oldest first.
func (b *Backend) Orders() []engine.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]engine.Order(nil), b.orders...)
}

// enter counts a call of op, runs its hook and returns any injected failure.
func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	var injected error
	if q := b.failures[op]; len(q) > 0 {
		injected = q[0]
		b.failures[op] = q[1:]
	}
	hook := b.hooks[op]
	b.mu.Unlock()

	if hook != nil {
		hook(ctx)
	}
	if injected != nil {
		return injected
	}
	return ctx.Err()
}
