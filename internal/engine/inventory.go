package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cartsync/internal/cart"
)

// RefreshInventory reloads the stock snapshot for the variants in the cart and
// replaces the inventory map wholesale. It is skipped when the cart is empty
// or has no region. Failures are logged; the snapshot is advisory.
func (e *Engine) RefreshInventory(ctx context.Context) {
	e.refreshInventory(ctx)
}

// AvailableCeiling returns the locally known stock ceiling for variantID.
// bounded is false when the variant is unmanaged, backorderable or unknown.
func (e *Engine) AvailableCeiling(variantID string) (ceiling int, bounded bool) {
	return e.store.State().Inventory.Ceiling(variantID)
}

func (e *Engine) refreshInventory(ctx context.Context) {
	c := e.store.State().Cart
	e.setInventoryKey(cart.InventoryKey(c))
	e.loadInventory(ctx, c)
}

// syncInventory refreshes inventory when the cart's (variant, quantity) set
// changed since the last refresh.
func (e *Engine) syncInventory(ctx context.Context) {
	c := e.store.State().Cart
	if !e.claimInventoryKey(cart.InventoryKey(c)) {
		return
	}
	e.loadInventory(ctx, c)
}

func (e *Engine) loadInventory(ctx context.Context, c *cart.Cart) {
	if c == nil || len(c.Items) == 0 || c.RegionID == "" {
		e.metrics.inventory(OutcomeSkipped)
		return
	}

	refs := cart.VariantRefs(c)
	key := fmt.Sprintf("%s:%s:%s", TagInventory, c.RegionID, cart.InventoryKey(c))
	v, err := e.cache.Get(ctx, key, e.inventoryTTL, []string{TagInventory}, func(ctx context.Context) (any, error) {
		return e.gateway.FetchCartItemsInventory(ctx, refs, c.RegionID)
	})
	if err != nil {
		e.metrics.inventory(OutcomeError)
		e.logger.Warn("inventory refresh failed", "cart_id", c.ID, "error", err)
		return
	}
	inv, ok := v.(cart.Inventory)
	if !ok {
		e.metrics.inventory(OutcomeError)
		e.logger.Warn("inventory refresh returned unexpected value", "cart_id", c.ID, "type", fmt.Sprintf("%T", v))
		return
	}

	e.store.Dispatch(ctx, SetInventory{Inventory: inv})
	e.metrics.inventory(OutcomeOK)
	e.logger.Debug("inventory refreshed", "cart_id", c.ID, "variants", len(inv))
}

func (e *Engine) setInventoryKey(key string) {
	e.invMu.Lock()
	defer e.invMu.Unlock()
	e.inventoryKey = key
}

// claimInventoryKey records key and reports whether it differs from the
// previous one.
func (e *Engine) claimInventoryKey(key string) bool {
	e.invMu.Lock()
	defer e.invMu.Unlock()
	if key == e.inventoryKey {
		return false
	}
	e.inventoryKey = key
	return true
}
