package cart

// Stage is the next checkout step a cart needs.
type Stage string

const (
	StageItems    Stage = "items"
	StageAddress  Stage = "address"
	StageShipping Stage = "shipping"
	StagePayment  Stage = "payment"
	StageReview   Stage = "review"
	StageComplete Stage = "complete"
)

// Checkout is the derived checkout state of a cart snapshot.
// It is always recomputed from the cart and never stored.
type Checkout struct {
	ItemCount          int   `json:"item_count"`
	HasAddress         bool  `json:"has_address"`
	HasShipping        bool  `json:"has_shipping"`
	HasPayment         bool  `json:"has_payment"`
	IsReadyForCheckout bool  `json:"is_ready_for_checkout"`
	Stage              Stage `json:"stage"`
}

// Derive computes the checkout state of c. A nil cart derives to an empty
// checkout at StageItems.
func Derive(c *Cart) Checkout {
	out := Checkout{
		ItemCount:   ItemCount(c),
		HasAddress:  HasAddress(c),
		HasShipping: HasShipping(c),
		HasPayment:  HasPayment(c),
	}
	out.IsReadyForCheckout = out.ItemCount > 0 && out.HasAddress && out.HasShipping && out.HasPayment

	switch {
	case c.IsCompleted():
		out.Stage = StageComplete
	case out.ItemCount == 0:
		out.Stage = StageItems
	case !out.HasAddress:
		out.Stage = StageAddress
	case !out.HasShipping:
		out.Stage = StageShipping
	case !out.HasPayment:
		out.Stage = StagePayment
	default:
		out.Stage = StageReview
	}
	return out
}

// ItemCount is the sum of line item quantities.
func ItemCount(c *Cart) int {
	if c == nil {
		return 0
	}
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// HasAddress reports whether a non-empty shipping address is set.
func HasAddress(c *Cart) bool {
	return c != nil && c.ShippingAddress != nil && c.ShippingAddress.Address1 != ""
}

// HasShipping reports whether at least one shipping method is selected.
func HasShipping(c *Cart) bool {
	return c != nil && len(c.ShippingMethods) > 0
}

// HasPayment reports whether the cart has a live payment session.
// Sessions in error or canceled state do not count.
func HasPayment(c *Cart) bool {
	if c == nil || c.PaymentCollection == nil {
		return false
	}
	for _, s := range c.PaymentCollection.Sessions {
		if s.Status != PaymentSessionError && s.Status != PaymentSessionCanceled {
			return true
		}
	}
	return false
}
