package engine

import (
	"context"
	"fmt"
)

// AddItem adds quantity of variantID to the active cart, creating a cart when
// none exists. Add is not optimistic: the line does not exist locally yet.
//
// A terminal cart is cleared and the add is retried once on a new cart. Any
// other failure resynchronizes from the backend and sets the error slot.
// Returns false if the call was dropped because another mutation is in flight.
func (e *Engine) AddItem(ctx context.Context, variantID string, quantity int, metadata map[string]string) bool {
	const op = "add_item"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		if variantID == "" {
			e.fail(ctx, op, fmt.Errorf("add item: variant id: %w", ErrMissingArgument))
			return OutcomeError
		}
		if quantity < 1 {
			e.fail(ctx, op, fmt.Errorf("add item %s: %w", variantID, ErrInvalidQuantity))
			return OutcomeError
		}

		if cur := e.store.State().Cart; cur.IsCompleted() {
			e.resetCart(ctx, cur.ID)
		}
		cartID, err := e.activeCartID(ctx)
		if err != nil {
			e.fail(ctx, op, fmt.Errorf("load cart id: %w", err))
			return OutcomeError
		}

		in := AddToCartInput{
			CartID:      cartID,
			VariantID:   variantID,
			Quantity:    quantity,
			CountryCode: e.countryCode,
			Metadata:    metadata,
		}
		c, err := e.gateway.AddToCart(ctx, in)
		if IsTerminalCart(err) && cartID != "" {
			e.resetCart(ctx, cartID)
			in.CartID = ""
			c, err = e.gateway.AddToCart(ctx, in)
		}
		if err != nil {
			return e.recoverFrom(ctx, op, err)
		}
		if !e.applyCart(ctx, c) {
			return OutcomeTerminal
		}
		e.cache.InvalidateAfterCartChange()
		return OutcomeOK
	})
}

// UpdateItem sets the quantity of one line.
//
// The new quantity is applied locally before the backend call. On success the
// server cart replaces it. On an inventory conflict only that line is restored
// from the pre-update snapshot, the insufficient-inventory error is set and
// inventory is refreshed once. Other failures resynchronize from the backend.
// A quantity below 1 is refused without a backend call.
func (e *Engine) UpdateItem(ctx context.Context, itemID string, quantity int) bool {
	const op = "update_item"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		if quantity < 1 {
			e.fail(ctx, op, fmt.Errorf("update item %s: %w", itemID, ErrInvalidQuantity))
			return OutcomeError
		}
		cur := e.store.State().Cart
		if cur == nil {
			e.fail(ctx, op, fmt.Errorf("update item %s: %w", itemID, ErrNoCart))
			return OutcomeError
		}
		if cur.IsCompleted() {
			e.resetCart(ctx, cur.ID)
			return OutcomeTerminal
		}
		prev, ok := cur.Item(itemID)
		if !ok {
			e.fail(ctx, op, fmt.Errorf("update item %s: %w", itemID, ErrUnknownItem))
			return OutcomeError
		}

		e.store.Dispatch(ctx, SetCart{Cart: cur.WithItemQuantity(itemID, quantity)})

		c, err := e.gateway.UpdateLineItem(ctx, cur.ID, itemID, quantity)
		switch {
		case err == nil:
			if !e.applyCart(ctx, c) {
				return OutcomeTerminal
			}
			e.cache.InvalidateAfterCartChange()
			return OutcomeOK

		case IsInventoryConflict(err):
			if latest := e.store.State().Cart; latest != nil {
				e.store.Dispatch(ctx, SetCart{Cart: latest.WithItem(prev)})
			}
			e.fail(ctx, op, err)
			e.cache.Invalidate(TagInventory)
			e.refreshInventory(ctx)
			return OutcomeRollback

		default:
			return e.recoverFrom(ctx, op, err)
		}
	})
}

// RemoveItem deletes one line. A cart that is already completed, locally or
// according to the backend, is cleared instead.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) bool {
	const op = "remove_item"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		cur := e.store.State().Cart
		if cur == nil {
			e.fail(ctx, op, fmt.Errorf("remove item %s: %w", itemID, ErrNoCart))
			return OutcomeError
		}
		if cur.IsCompleted() {
			e.resetCart(ctx, cur.ID)
			return OutcomeTerminal
		}

		c, err := e.gateway.DeleteLineItem(ctx, cur.ID, itemID)
		if err != nil {
			return e.recoverFrom(ctx, op, err)
		}
		if !e.applyCart(ctx, c) {
			return OutcomeTerminal
		}
		e.cache.InvalidateAfterCartChange()
		return OutcomeOK
	})
}

// recoverFrom handles a failed mutation: a terminal cart is cleared, anything
// else resynchronizes from the backend and sets the error slot.
func (e *Engine) recoverFrom(ctx context.Context, op string, err error) string {
	if IsTerminalCart(err) {
		e.resetCart(ctx, "")
		return OutcomeTerminal
	}
	return e.resync(ctx, op, err)
}
