package cart

import (
	"fmt"
	"time"
)

// Scope names the checkout stage a projection was fetched for.
type Scope int

const (
	// ScopeFull is the complete cart.
	ScopeFull Scope = iota
	// ScopeAddress covers email, shipping and billing address.
	ScopeAddress
	// ScopeShipping covers the selected shipping methods.
	ScopeShipping
	// ScopePayment covers the payment collection and its sessions.
	ScopePayment
)

// String returns the wire name of the scope ("" for ScopeFull).
func (s Scope) String() string {
	switch s {
	case ScopeFull:
		return ""
	case ScopeAddress:
		return "address"
	case ScopeShipping:
		return "shipping"
	case ScopePayment:
		return "payment"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// ParseScope converts a context name into a Scope.
// The empty string and "full" both mean ScopeFull.
func ParseScope(name string) (Scope, error) {
	switch name {
	case "", "full":
		return ScopeFull, nil
	case "address":
		return ScopeAddress, nil
	case "shipping":
		return ScopeShipping, nil
	case "payment":
		return ScopePayment, nil
	default:
		return ScopeFull, fmt.Errorf("unknown cart scope %q", name)
	}
}

// Patch is a cart projection: either a Full cart or one of the scoped
// partial projections. Each implementation owns a fixed set of fields and
// Merge touches only those.
type Patch interface {
	// Scope reports which checkout stage the projection belongs to.
	Scope() Scope
	// Completed reports whether the projection carries a completion marker.
	Completed() bool

	apply(dst *Cart)
}

// Merge returns a copy of base with p applied. The base cart is not modified.
// Merging onto a nil cart yields nil: a first hydration must be a full set.
func Merge(base *Cart, p Patch) *Cart {
	if base == nil || p == nil {
		return base.Clone()
	}
	out := base.Clone()
	p.apply(out)
	return out
}

// Full is a complete cart used where a Patch is expected.
type Full struct {
	Cart *Cart
}

func (Full) Scope() Scope { return ScopeFull }

func (f Full) Completed() bool { return f.Cart.IsCompleted() }

func (f Full) apply(dst *Cart) {
	if f.Cart == nil {
		return
	}
	*dst = *f.Cart.Clone()
}

// AddressPatch is the address-stage projection.
// A nil field was omitted by the response and never overwrites state.
type AddressPatch struct {
	Email           *string    `json:"email,omitempty"`
	ShippingAddress *Address   `json:"shipping_address,omitempty"`
	BillingAddress  *Address   `json:"billing_address,omitempty"`
	Totals          *Totals    `json:"totals,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func (AddressPatch) Scope() Scope { return ScopeAddress }

func (p AddressPatch) Completed() bool { return p.CompletedAt != nil }

func (p AddressPatch) apply(dst *Cart) {
	if p.Email != nil {
		dst.Email = *p.Email
	}
	if p.ShippingAddress != nil {
		dst.ShippingAddress = cloneAddress(p.ShippingAddress)
	}
	if p.BillingAddress != nil {
		dst.BillingAddress = cloneAddress(p.BillingAddress)
	}
	applyCommon(dst, p.Totals, p.CompletedAt)
}

// ShippingPatch is the shipping-stage projection.
// ShippingMethods is owned by this scope and always replaces the cart's methods.
type ShippingPatch struct {
	ShippingMethods []ShippingMethod `json:"shipping_methods"`
	Totals          *Totals          `json:"totals,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

func (ShippingPatch) Scope() Scope { return ScopeShipping }

func (p ShippingPatch) Completed() bool { return p.CompletedAt != nil }

func (p ShippingPatch) apply(dst *Cart) {
	dst.ShippingMethods = cloneShippingMethods(p.ShippingMethods)
	applyCommon(dst, p.Totals, p.CompletedAt)
}

// PaymentPatch is the payment-stage projection.
// PaymentCollection is owned by this scope and always replaces the cart's collection.
type PaymentPatch struct {
	PaymentCollection *PaymentCollection `json:"payment_collection"`
	Totals            *Totals            `json:"totals,omitempty"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

func (PaymentPatch) Scope() Scope { return ScopePayment }

func (p PaymentPatch) Completed() bool { return p.CompletedAt != nil }

func (p PaymentPatch) apply(dst *Cart) {
	dst.PaymentCollection = clonePaymentCollection(p.PaymentCollection)
	applyCommon(dst, p.Totals, p.CompletedAt)
}

func applyCommon(dst *Cart, totals *Totals, completedAt *time.Time) {
	if totals != nil {
		dst.Totals = *totals
	}
	if completedAt != nil {
		t := *completedAt
		dst.CompletedAt = &t
	}
}

// ProjectAddress extracts the address-stage projection of c.
func ProjectAddress(c *Cart) AddressPatch {
	email := c.Email
	totals := c.Totals
	return AddressPatch{
		Email:           &email,
		ShippingAddress: cloneAddress(c.ShippingAddress),
		BillingAddress:  cloneAddress(c.BillingAddress),
		Totals:          &totals,
		CompletedAt:     copyTime(c.CompletedAt),
	}
}

// ProjectShipping extracts the shipping-stage projection of c.
func ProjectShipping(c *Cart) ShippingPatch {
	totals := c.Totals
	return ShippingPatch{
		ShippingMethods: cloneShippingMethods(c.ShippingMethods),
		Totals:          &totals,
		CompletedAt:     copyTime(c.CompletedAt),
	}
}

// ProjectPayment extracts the payment-stage projection of c.
func ProjectPayment(c *Cart) PaymentPatch {
	totals := c.Totals
	return PaymentPatch{
		PaymentCollection: clonePaymentCollection(c.PaymentCollection),
		Totals:            &totals,
		CompletedAt:       copyTime(c.CompletedAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
