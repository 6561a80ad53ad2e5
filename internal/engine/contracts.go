package engine

import (
	"context"
	"time"

	"github.com/roach88/cartsync/internal/cart"
)

// Gateway performs the remote commerce calls. It is treated as a black box
// that returns a full cart, a scoped projection, or a *GatewayError.
//
// Retrieve methods return (nil, nil) when the cart does not exist.
type Gateway interface {
	RetrieveCart(ctx context.Context, cartID string) (*cart.Cart, error)
	RetrieveCartForAddress(ctx context.Context, cartID string) (*cart.AddressPatch, error)
	RetrieveCartForShipping(ctx context.Context, cartID string) (*cart.ShippingPatch, error)
	RetrieveCartForPayment(ctx context.Context, cartID string) (*cart.PaymentPatch, error)

	// AddToCart adds a line; an empty CartID creates a new cart.
	AddToCart(ctx context.Context, in AddToCartInput) (*cart.Cart, error)
	UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error)
	DeleteLineItem(ctx context.Context, cartID, lineID string) (*cart.Cart, error)

	SetAddresses(ctx context.Context, cartID string, payload AddressPayload) (AddressResult, error)
	SetShippingMethod(ctx context.Context, in ShippingInput) (*cart.ShippingPatch, error)
	InitiatePaymentSession(ctx context.Context, c *cart.Cart, providerID string) error
	SelectPaymentSession(ctx context.Context, cartID, providerID string) (*cart.Cart, error)

	PlaceOrder(ctx context.Context, cartID string, skipRedirectCheck bool) (OrderResult, error)

	FetchCartItemsInventory(ctx context.Context, items []cart.VariantRef, regionID string) (cart.Inventory, error)
}

// AddToCartInput is the payload of Gateway.AddToCart.
type AddToCartInput struct {
	CartID      string            `json:"cart_id,omitempty"`
	VariantID   string            `json:"variant_id"`
	Quantity    int               `json:"quantity"`
	CountryCode string            `json:"country_code"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AddressPayload is the transport payload of Gateway.SetAddresses.
type AddressPayload struct {
	Email           string            `json:"email,omitempty"`
	ShippingAddress cart.Address      `json:"shipping_address"`
	BillingAddress  cart.Address      `json:"billing_address"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// AddressResult is the answer of Gateway.SetAddresses.
//
// A structured success carries Success and Cart. Otherwise Message holds the
// backend's answer; anything other than "success" is an error message.
type AddressResult struct {
	Success bool
	Cart    *cart.AddressPatch
	Message string
}

// ShippingInput is the payload of Gateway.SetShippingMethod.
// Data carries method-specific values such as a pickup point reference.
type ShippingInput struct {
	CartID           string         `json:"cart_id"`
	ShippingMethodID string         `json:"shipping_method_id"`
	Data             map[string]any `json:"data,omitempty"`
}

// OrderResultType tells what PlaceOrder produced.
type OrderResultType string

const (
	OrderResultOrder    OrderResultType = "order"
	OrderResultOrderSet OrderResultType = "order_set"
	OrderResultCart     OrderResultType = "cart"
)

// Order is a placed order.
type Order struct {
	ID           string          `json:"id"`
	DisplayID    int             `json:"display_id"`
	CartID       string          `json:"cart_id"`
	Email        string          `json:"email,omitempty"`
	CurrencyCode string          `json:"currency_code,omitempty"`
	Items        []cart.LineItem `json:"items"`
	Total        int64           `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

// OrderSet groups the orders produced from one cart split across sellers.
type OrderSet struct {
	ID     string  `json:"id"`
	Orders []Order `json:"orders"`
}

// OrderResult is the answer of Gateway.PlaceOrder. Type "cart" means no order
// was produced; Cart and Message then describe why.
type OrderResult struct {
	Type     OrderResultType `json:"type"`
	Order    *Order          `json:"order,omitempty"`
	OrderSet *OrderSet       `json:"order_set,omitempty"`
	Cart     *cart.Cart      `json:"cart,omitempty"`
	Message  string          `json:"message,omitempty"`
}

// ComputeFunc produces a cache value on miss.
type ComputeFunc func(ctx context.Context) (any, error)

// Cache is the unified response cache shared with other readers.
type Cache interface {
	// Get returns the cached value for key or computes, stores and returns it.
	Get(ctx context.Context, key string, ttl time.Duration, tags []string, compute ComputeFunc) (any, error)
	// Invalidate drops entries carrying tag or whose key starts with tag.
	Invalidate(tag string)
	// InvalidateAfterCartChange drops everything derived from cart content.
	InvalidateAfterCartChange()
}

// Cache tags used by the engine.
const (
	TagCart      = "cart"
	TagInventory = "inventory"
)

// CartIDStore is the local cart storage: the id of the active cart.
type CartIDStore interface {
	CartID(ctx context.Context) (string, error)
	SetCartID(ctx context.Context, cartID string) error
	ClearCartID(ctx context.Context) error
}

// DispatchLog receives a record of every dispatch, in Seq order per store.
type DispatchLog interface {
	RecordDispatch(ctx context.Context, rec DispatchRecord) error
}

// DispatchRecord describes one dispatch for the dispatch log.
type DispatchRecord struct {
	Seq         int64  `json:"seq"`
	Action      string `json:"action"`
	CartID      string `json:"cart_id,omitempty"`
	LastUpdated int64  `json:"last_updated"`
	Payload     []byte `json:"payload,omitempty"`
}
