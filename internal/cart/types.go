package cart

import (
	"strings"
	"time"
)

// Address is a postal address attached to a cart.
type Address struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Company     string `json:"company,omitempty"`
	Address1    string `json:"address_1,omitempty"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	Province    string `json:"province,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

// LineItem is one entry of a cart's item sequence.
// Quantity is always >= 1; a line that would drop below 1 is removed instead.
type LineItem struct {
	ID            string            `json:"id"`
	VariantID     string            `json:"variant_id"`
	ProductID     string            `json:"product_id"`
	Title         string            `json:"title,omitempty"`
	Quantity      int               `json:"quantity"`
	UnitPrice     int64             `json:"unit_price"`
	Subtotal      int64             `json:"subtotal"`
	Total         int64             `json:"total"`
	DiscountTotal int64             `json:"discount_total"`
	Thumbnail     string            `json:"thumbnail,omitempty"`
	Options       map[string]string `json:"options,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ShippingMethod is a shipping option selected for one fulfillment group.
type ShippingMethod struct {
	ID               string         `json:"id"`
	ShippingOptionID string         `json:"shipping_option_id"`
	Name             string         `json:"name,omitempty"`
	Amount           int64          `json:"amount"`
	Data             map[string]any `json:"data,omitempty"`
}

// PaymentSessionStatus is the lifecycle state of a payment session.
type PaymentSessionStatus string

const (
	PaymentSessionPending      PaymentSessionStatus = "pending"
	PaymentSessionRequiresMore PaymentSessionStatus = "requires_more"
	PaymentSessionAuthorized   PaymentSessionStatus = "authorized"
	PaymentSessionError        PaymentSessionStatus = "error"
	PaymentSessionCanceled     PaymentSessionStatus = "canceled"
)

// PaymentSession is one provider's session inside a payment collection.
type PaymentSession struct {
	ID         string               `json:"id"`
	ProviderID string               `json:"provider_id"`
	Status     PaymentSessionStatus `json:"status"`
	Amount     int64                `json:"amount"`
	Selected   bool                 `json:"selected,omitempty"`
}

// PaymentCollection groups the payment sessions of a cart.
type PaymentCollection struct {
	ID       string           `json:"id"`
	Amount   int64            `json:"amount"`
	Sessions []PaymentSession `json:"payment_sessions"`
}

// Promotion is a promotional adjustment applied to the cart.
type Promotion struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

// GiftCard is a gift card balance applied to the cart.
type GiftCard struct {
	Code    string `json:"code"`
	Balance int64  `json:"balance"`
}

// Totals are the server-computed money totals of a cart, in minor units.
type Totals struct {
	Subtotal      int64 `json:"subtotal"`
	ItemTotal     int64 `json:"item_total"`
	ShippingTotal int64 `json:"shipping_total"`
	DiscountTotal int64 `json:"discount_total"`
	TaxTotal      int64 `json:"tax_total"`
	Total         int64 `json:"total"`
}

// Cart is the authoritative client view of a remote cart.
//
// INVARIANT: a cart with CompletedAt set is terminal. No mutation is sent for
// it; the engine clears local state when it observes one.
type Cart struct {
	ID                string             `json:"id"`
	RegionID          string             `json:"region_id,omitempty"`
	CurrencyCode      string             `json:"currency_code,omitempty"`
	Email             string             `json:"email,omitempty"`
	Items             []LineItem         `json:"items"`
	ShippingAddress   *Address           `json:"shipping_address,omitempty"`
	BillingAddress    *Address           `json:"billing_address,omitempty"`
	ShippingMethods   []ShippingMethod   `json:"shipping_methods,omitempty"`
	PaymentCollection *PaymentCollection `json:"payment_collection,omitempty"`
	Promotions        []Promotion        `json:"promotions,omitempty"`
	GiftCards         []GiftCard         `json:"gift_cards,omitempty"`
	Totals            Totals             `json:"totals"`
	CompletedAt       *time.Time         `json:"completed_at,omitempty"`
}

// IsCompleted reports whether the cart carries a completion marker.
func (c *Cart) IsCompleted() bool {
	return c != nil && c.CompletedAt != nil
}

// Item returns the line item with the given id.
func (c *Cart) Item(itemID string) (LineItem, bool) {
	if c == nil {
		return LineItem{}, false
	}
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return LineItem{}, false
}

// ItemByVariant returns the first line item for variantID.
func (c *Cart) ItemByVariant(variantID string) (LineItem, bool) {
	if c == nil {
		return LineItem{}, false
	}
	for _, it := range c.Items {
		if it.VariantID == variantID {
			return it, true
		}
	}
	return LineItem{}, false
}

// PendingSession returns the pending payment session for providerID, if any.
func (c *Cart) PendingSession(providerID string) (PaymentSession, bool) {
	if c == nil || c.PaymentCollection == nil {
		return PaymentSession{}, false
	}
	for _, s := range c.PaymentCollection.Sessions {
		if s.ProviderID == providerID && s.Status == PaymentSessionPending {
			return s, true
		}
	}
	return PaymentSession{}, false
}

// Clone returns a deep copy of c. Clone of nil is nil.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = cloneItems(c.Items)
	out.ShippingAddress = cloneAddress(c.ShippingAddress)
	out.BillingAddress = cloneAddress(c.BillingAddress)
	out.ShippingMethods = cloneShippingMethods(c.ShippingMethods)
	out.PaymentCollection = clonePaymentCollection(c.PaymentCollection)
	if c.Promotions != nil {
		out.Promotions = append([]Promotion(nil), c.Promotions...)
	}
	if c.GiftCards != nil {
		out.GiftCards = append([]GiftCard(nil), c.GiftCards...)
	}
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// WithItemQuantity returns a copy of c where itemID has the given quantity and
// a matching subtotal. Other lines and cart fields are untouched.
func (c *Cart) WithItemQuantity(itemID string, quantity int) *Cart {
	out := c.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Quantity = quantity
			out.Items[i].Subtotal = out.Items[i].UnitPrice * int64(quantity)
		}
	}
	return out
}

// WithItem returns a copy of c where the line with item.ID is replaced by item.
// If no such line exists the copy is returned unchanged.
func (c *Cart) WithItem(item LineItem) *Cart {
	out := c.Clone()
	if out == nil {
		return nil
	}
	for i := range out.Items {
		if out.Items[i].ID == item.ID {
			out.Items[i] = cloneItems([]LineItem{item})[0]
		}
	}
	return out
}

// NormalizeCountryCode lowercases and trims an ISO country code.
func NormalizeCountryCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func cloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it
		out[i].Options = cloneStringMap(it.Options)
		out[i].Metadata = cloneStringMap(it.Metadata)
	}
	return out
}

func cloneAddress(a *Address) *Address {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

func cloneShippingMethods(methods []ShippingMethod) []ShippingMethod {
	if methods == nil {
		return nil
	}
	out := make([]ShippingMethod, len(methods))
	for i, m := range methods {
		out[i] = m
		if m.Data != nil {
			out[i].Data = make(map[string]any, len(m.Data))
			for k, v := range m.Data {
				out[i].Data[k] = v
			}
		}
	}
	return out
}

func clonePaymentCollection(pc *PaymentCollection) *PaymentCollection {
	if pc == nil {
		return nil
	}
	cp := *pc
	if pc.Sessions != nil {
		cp.Sessions = append([]PaymentSession(nil), pc.Sessions...)
	}
	return &cp
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
