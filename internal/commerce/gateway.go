package commerce

import (
	"context"

	"github.com/roach88/cartsync/internal/cart"
	"github.com/roach88/cartsync/internal/engine"
)

var _ engine.Gateway = (*Backend)(nil)

// RetrieveCart returns the cart, or nil if it does not exist.
func (b *Backend) RetrieveCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	if err := b.enter(ctx, OpRetrieveCart); err != nil {
		return nil, err
	}
	return b.StoredCart(cartID), nil
}

// RetrieveCartForAddress returns the address projection, or nil.
func (b *Backend) RetrieveCartForAddress(ctx context.Context, cartID string) (*cart.AddressPatch, error) {
	if err := b.enter(ctx, OpRetrieveCartForAddress); err != nil {
		return nil, err
	}
	c := b.StoredCart(cartID)
	if c == nil {
		return nil, nil
	}
	p := cart.ProjectAddress(c)
	return &p, nil
}

// RetrieveCartForShipping returns the shipping projection, or nil.
func (b *Backend) RetrieveCartForShipping(ctx context.Context, cartID string) (*cart.ShippingPatch, error) {
	if err := b.enter(ctx, OpRetrieveCartForShipping); err != nil {
		return nil, err
	}
	c := b.StoredCart(cartID)
	if c == nil {
		return nil, nil
	}
	p := cart.ProjectShipping(c)
	return &p, nil
}

// RetrieveCartForPayment returns the payment projection, or nil.
func (b *Backend) RetrieveCartForPayment(ctx context.Context, cartID string) (*cart.PaymentPatch, error) {
	if err := b.enter(ctx, OpRetrieveCartForPayment); err != nil {
		return nil, err
	}
	c := b.StoredCart(cartID)
	if c == nil {
		return nil, nil
	}
	p := cart.ProjectPayment(c)
	return &p, nil
}

// AddToCart adds a line, merging into an existing line of the same variant.
// An empty CartID creates a new cart in the backend's region.
func (b *Backend) AddToCart(ctx context.Context, in engine.AddToCartInput) (*cart.Cart, error) {
	if err := b.enter(ctx, OpAddToCart); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.variants[in.VariantID]
	if !ok {
		return nil, errNotFound(OpAddToCart, "variant", in.VariantID)
	}
	if in.Quantity < 1 {
		return nil, errInvalid(OpAddToCart, "quantity must be at least 1")
	}

	var c *cart.Cart
	if in.CartID != "" {
		if c, ok = b.carts[in.CartID]; !ok {
			return nil, errCartNotFound(OpAddToCart, in.CartID)
		}
		if c.IsCompleted() {
			return nil, errCartCompleted(OpAddToCart, in.CartID)
		}
	}

	idx := -1
	quantity := in.Quantity
	if c != nil {
		idx = variantIndex(c, v.ID)
		if idx >= 0 {
			quantity += c.Items[idx].Quantity
		}
	}
	if !v.available(quantity) {
		return nil, errInsufficientInventory(OpAddToCart, v.ID)
	}

	if c == nil {
		c = &cart.Cart{
			ID:           b.ids.Generate("cart"),
			RegionID:     b.region.ID,
			CurrencyCode: b.region.CurrencyCode,
			Items:        []cart.LineItem{},
		}
		b.carts[c.ID] = c
	}
	if idx >= 0 {
		c.Items[idx].Quantity = quantity
	} else {
		c.Items = append(c.Items, cart.LineItem{
			ID:        b.ids.Generate("item"),
			VariantID: v.ID,
			ProductID: v.ProductID,
			Title:     v.Title,
			Quantity:  quantity,
			UnitPrice: v.Price,
			Thumbnail: v.Thumbnail,
			Options:   copyMap(v.Options),
			Metadata:  copyMap(in.Metadata),
		})
	}
	recalculate(c)
	return c.Clone(), nil
}

// UpdateLineItem sets the quantity of a line. Quantities beyond stock of a
// managed, non-backorderable variant are an inventory conflict.
func (b *Backend) UpdateLineItem(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	if err := b.enter(ctx, OpUpdateLineItem); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpUpdateLineItem, cartID)
	if err != nil {
		return nil, err
	}
	idx := itemIndex(c, lineID)
	if idx < 0 {
		return nil, errNotFound(OpUpdateLineItem, "line item", lineID)
	}
	if quantity < 1 {
		return nil, errInvalid(OpUpdateLineItem, "quantity must be at least 1")
	}
	if v, ok := b.variants[c.Items[idx].VariantID]; ok && !v.available(quantity) {
		return nil, errInsufficientInventory(OpUpdateLineItem, v.ID)
	}

	c.Items[idx].Quantity = quantity
	recalculate(c)
	return c.Clone(), nil
}

// DeleteLineItem removes a line.
func (b *Backend) DeleteLineItem(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	if err := b.enter(ctx, OpDeleteLineItem); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpDeleteLineItem, cartID)
	if err != nil {
		return nil, err
	}
	idx := itemIndex(c, lineID)
	if idx < 0 {
		return nil, errNotFound(OpDeleteLineItem, "line item", lineID)
	}
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
	recalculate(c)
	return c.Clone(), nil
}

// SetAddresses stores the addresses and email of a cart.
//
// The answer is a structured success with an address projection. An empty
// payload email is left out of the projection. An unknown cart is answered
// with a plain message, as the remote backend does.
func (b *Backend) SetAddresses(ctx context.Context, cartID string, payload engine.AddressPayload) (engine.AddressResult, error) {
	if err := b.enter(ctx, OpSetAddresses); err != nil {
		return engine.AddressResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.carts[cartID]
	if !ok {
		return engine.AddressResult{Message: "cart not found"}, nil
	}
	if c.IsCompleted() {
		return engine.AddressResult{}, errCartCompleted(OpSetAddresses, cartID)
	}

	ship := payload.ShippingAddress
	bill := payload.BillingAddress
	c.ShippingAddress = &ship
	c.BillingAddress = &bill
	var email *string
	if payload.Email != "" {
		c.Email = payload.Email
		e := payload.Email
		email = &e
	}
	recalculate(c)

	totals := c.Totals
	return engine.AddressResult{
		Success: true,
		Cart: &cart.AddressPatch{
			Email:           email,
			ShippingAddress: &ship,
			BillingAddress:  &bill,
			Totals:          &totals,
		},
	}, nil
}

// SetShippingMethod selects a shipping option. The cart has a single
// fulfillment group, so the new method replaces any previous one.
func (b *Backend) SetShippingMethod(ctx context.Context, in engine.ShippingInput) (*cart.ShippingPatch, error) {
	if err := b.enter(ctx, OpSetShippingMethod); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpSetShippingMethod, in.CartID)
	if err != nil {
		return nil, err
	}
	opt, ok := b.shipping[in.ShippingMethodID]
	if !ok {
		return nil, errNotFound(OpSetShippingMethod, "shipping option", in.ShippingMethodID)
	}

	var data map[string]any
	if len(in.Data) > 0 {
		data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			data[k] = v
		}
	}
	c.ShippingMethods = []cart.ShippingMethod{{
		ID:               b.ids.Generate("sm"),
		ShippingOptionID: opt.ID,
		Name:             opt.Name,
		Amount:           opt.Amount,
		Data:             data,
	}}
	recalculate(c)

	p := cart.ProjectShipping(c)
	return &p, nil
}

// InitiatePaymentSession opens a pending session for providerID, creating the
// payment collection if needed.
func (b *Backend) InitiatePaymentSession(ctx context.Context, in *cart.Cart, providerID string) error {
	if err := b.enter(ctx, OpInitiatePaymentSession); err != nil {
		return err
	}
	if in == nil {
		return errInvalid(OpInitiatePaymentSession, "cart is required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpInitiatePaymentSession, in.ID)
	if err != nil {
		return err
	}
	if !b.providers[providerID] {
		return errNotFound(OpInitiatePaymentSession, "payment provider", providerID)
	}

	if c.PaymentCollection == nil {
		c.PaymentCollection = &cart.PaymentCollection{ID: b.ids.Generate("paycol")}
	}
	c.PaymentCollection.Sessions = append(c.PaymentCollection.Sessions, cart.PaymentSession{
		ID:         b.ids.Generate("payses"),
		ProviderID: providerID,
		Status:     cart.PaymentSessionPending,
	})
	recalculate(c)
	return nil
}

// SelectPaymentSession marks the pending session of providerID as selected.
func (b *Backend) SelectPaymentSession(ctx context.Context, cartID, providerID string) (*cart.Cart, error) {
	if err := b.enter(ctx, OpSelectPaymentSession); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpSelectPaymentSession, cartID)
	if err != nil {
		return nil, err
	}
	if _, ok := c.PendingSession(providerID); !ok {
		return nil, errNotFound(OpSelectPaymentSession, "pending payment session for provider", providerID)
	}
	selected := false
	for i := range c.PaymentCollection.Sessions {
		s := &c.PaymentCollection.Sessions[i]
		s.Selected = !selected && s.ProviderID == providerID && s.Status == cart.PaymentSessionPending
		if s.Selected {
			selected = true
		}
	}
	return c.Clone(), nil
}

// PlaceOrder completes the cart and records an order.
//
// A cart missing items, address, shipping or a selected payment session is
// answered with a "cart" result describing what is missing. Stock of managed
// variants is decremented.
func (b *Backend) PlaceOrder(ctx context.Context, cartID string, _ bool) (engine.OrderResult, error) {
	if err := b.enter(ctx, OpPlaceOrder); err != nil {
		return engine.OrderResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, err := b.mutableCart(OpPlaceOrder, cartID)
	if err != nil {
		return engine.OrderResult{}, err
	}
	if msg := missingForOrder(c); msg != "" {
		return engine.OrderResult{Type: engine.OrderResultCart, Cart: c.Clone(), Message: msg}, nil
	}
	for _, it := range c.Items {
		v, ok := b.variants[it.VariantID]
		if !ok {
			continue
		}
		if !v.available(it.Quantity) {
			return engine.OrderResult{}, errInsufficientInventory(OpPlaceOrder, v.ID)
		}
	}
	for _, it := range c.Items {
		if v, ok := b.variants[it.VariantID]; ok && v.ManageInventory {
			v.Stock -= it.Quantity
			b.variants[v.ID] = v
		}
	}

	now := b.now()
	c.CompletedAt = &now
	for i := range c.PaymentCollection.Sessions {
		if c.PaymentCollection.Sessions[i].Selected {
			c.PaymentCollection.Sessions[i].Status = cart.PaymentSessionAuthorized
		}
	}

	b.displayID++
	order := engine.Order{
		ID:           b.ids.Generate("order"),
		DisplayID:    b.displayID,
		CartID:       c.ID,
		Email:        c.Email,
		CurrencyCode: c.CurrencyCode,
		Items:        c.Clone().Items,
		Total:        c.Totals.Total,
		CreatedAt:    now,
	}
	b.orders = append(b.orders, order)
	return engine.OrderResult{Type: engine.OrderResultOrder, Order: &order}, nil
}

// FetchCartItemsInventory returns the stock snapshot of the requested
// variants. Unknown variants are left out.
func (b *Backend) FetchCartItemsInventory(ctx context.Context, items []cart.VariantRef, regionID string) (cart.Inventory, error) {
	if err := b.enter(ctx, OpFetchInventory); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if regionID != b.region.ID {
		return nil, errNotFound(OpFetchInventory, "region", regionID)
	}
	inv := make(cart.Inventory, len(items))
	for _, ref := range items {
		v, ok := b.variants[ref.VariantID]
		if !ok {
			continue
		}
		inv[v.ID] = cart.VariantInventory{
			InventoryQuantity: v.Stock,
			ManageInventory:   v.ManageInventory,
			AllowBackorder:    v.AllowBackorder,
		}
	}
	return inv, nil
}

// mutableCart returns the stored cart if it exists and is not completed.
// Caller must hold b.mu.
func (b *Backend) mutableCart(op, cartID string) (*cart.Cart, error) {
	c, ok := b.carts[cartID]
	if !ok {
		return nil, errCartNotFound(op, cartID)
	}
	if c.IsCompleted() {
		return nil, errCartCompleted(op, cartID)
	}
	return c, nil
}
