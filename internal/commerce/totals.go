package commerce

import (
	"github.com/roach88/cartsync/internal/cart"
)

// recalculate recomputes line and cart totals from prices and quantities.
// No tax or promotions are modeled; gift card balances reduce the total down
// to zero.
func recalculate(c *cart.Cart) {
	var items int64
	for i := range c.Items {
		it := &c.Items[i]
		it.Subtotal = it.UnitPrice * int64(it.Quantity)
		it.Total = it.Subtotal - it.DiscountTotal
		items += it.Subtotal
	}
	var shipping int64
	for _, m := range c.ShippingMethods {
		shipping += m.Amount
	}
	var discount int64
	for _, p := range c.Promotions {
		discount += p.Amount
	}

	total := items + shipping - discount
	for _, g := range c.GiftCards {
		total -= g.Balance
	}
	if total < 0 {
		total = 0
	}

	c.Totals = cart.Totals{
		Subtotal:      items,
		ItemTotal:     items,
		ShippingTotal: shipping,
		DiscountTotal: discount,
		Total:         total,
	}
	if pc := c.PaymentCollection; pc != nil {
		pc.Amount = total
		for i := range pc.Sessions {
			pc.Sessions[i].Amount = total
		}
	}
}

// missingForOrder describes what prevents c from being ordered, or "".
func missingForOrder(c *cart.Cart) string {
	switch {
	case len(c.Items) == 0:
		return "cart has no items"
	case !cart.HasAddress(c):
		return "cart has no shipping address"
	case !cart.HasShipping(c):
		return "cart has no shipping method"
	}
	if c.PaymentCollection != nil {
		for _, s := range c.PaymentCollection.Sessions {
			if s.Selected {
				return ""
			}
		}
	}
	return "cart has no selected payment session"
}

func itemIndex(c *cart.Cart, lineID string) int {
	for i, it := range c.Items {
		if it.ID == lineID {
			return i
		}
	}
	return -1
}

func variantIndex(c *cart.Cart, variantID string) int {
	for i, it := range c.Items {
		if it.VariantID == variantID {
			return i
		}
	}
	return -1
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
