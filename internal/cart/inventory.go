package cart

import (
	"github.com/roach88/cartsync/internal/canonical"
)

// DomainInventoryKey separates inventory keys from other canonical hashes.
const DomainInventoryKey = "cartsync/inventory-key/v1"

// VariantRef identifies a purchasable variant and its parent product.
type VariantRef struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

// VariantInventory is the stock snapshot of one variant.
type VariantInventory struct {
	InventoryQuantity int  `json:"inventory_quantity"`
	ManageInventory   bool `json:"manage_inventory"`
	AllowBackorder    bool `json:"allow_backorder"`
}

// Inventory maps variant id to its stock snapshot.
type Inventory map[string]VariantInventory

// Clone returns a copy of inv. Clone of nil is nil.
func (inv Inventory) Clone() Inventory {
	if inv == nil {
		return nil
	}
	out := make(Inventory, len(inv))
	for k, v := range inv {
		out[k] = v
	}
	return out
}

// VariantRefs returns the distinct (product, variant) pairs of c's line
// items in first-seen order.
func VariantRefs(c *Cart) []VariantRef {
	if c == nil {
		return nil
	}
	seen := make(map[string]bool, len(c.Items))
	var refs []VariantRef
	for _, it := range c.Items {
		if it.VariantID == "" || seen[it.VariantID] {
			continue
		}
		seen[it.VariantID] = true
		refs = append(refs, VariantRef{ProductID: it.ProductID, VariantID: it.VariantID})
	}
	return refs
}

// InventoryKey summarises the (variant, quantity) pairs of c.
//
// Two carts with the same per-variant quantities produce the same key
// regardless of line order, so the key changes only when stock-relevant
// content changes. An empty or nil cart has the empty key.
func InventoryKey(c *Cart) string {
	if c == nil || len(c.Items) == 0 {
		return ""
	}
	quantities := make(map[string]any, len(c.Items))
	for _, it := range c.Items {
		prev, _ := quantities[it.VariantID].(int)
		quantities[it.VariantID] = prev + it.Quantity
	}
	key, err := canonical.Hash(DomainInventoryKey, quantities)
	if err != nil {
		// Only ints and strings are encoded, so this cannot fail.
		panic(err)
	}
	return key
}

// Ceiling returns the locally available stock for variantID.
// bounded is false when stock is not managed, backorders are allowed, or the
// variant is missing from the snapshot; the server stays authoritative either way.
func (inv Inventory) Ceiling(variantID string) (ceiling int, bounded bool) {
	snap, ok := inv[variantID]
	if !ok || !snap.ManageInventory || snap.AllowBackorder {
		return 0, false
	}
	if snap.InventoryQuantity < 0 {
		return 0, true
	}
	return snap.InventoryQuantity, true
}

// MaxQuantity caps limit by the variant's ceiling when one applies.
func (inv Inventory) MaxQuantity(variantID string, limit int) int {
	ceiling, bounded := inv.Ceiling(variantID)
	if bounded && ceiling < limit {
		return ceiling
	}
	return limit
}
