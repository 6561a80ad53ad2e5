package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cartsync/internal/cart"
)

// RefreshCart re-reads the active cart from the backend.
//
// A scoped refresh merges the returned projection onto the current cart; a
// full refresh, or any refresh with no cart in state, replaces it. A completed
// cart clears local state. On failure the error slot is set and the cart is
// left as it was. With no stored cart id there is nothing to fetch.
func (e *Engine) RefreshCart(ctx context.Context, scope cart.Scope) {
	outcome := OutcomeOK
	if err := e.refresh(ctx, scope); err != nil {
		if IsTerminalCart(err) {
			e.resetCart(ctx, "")
			outcome = OutcomeTerminal
		} else {
			e.fail(ctx, "refresh_cart", err)
			outcome = OutcomeError
		}
	}
	e.metrics.observe("refresh_cart", outcome)
	e.syncInventory(ctx)
}

func (e *Engine) refresh(ctx context.Context, scope cart.Scope) error {
	cartID, err := e.activeCartID(ctx)
	if err != nil {
		return fmt.Errorf("load cart id: %w", err)
	}
	if cartID == "" {
		return nil
	}

	// First hydration needs the whole cart; a projection has nothing to merge onto.
	if scope != cart.ScopeFull && e.store.State().Cart == nil {
		scope = cart.ScopeFull
	}

	patch, err := e.fetch(ctx, cartID, scope)
	if err != nil {
		return fmt.Errorf("retrieve cart %s (%s): %w", cartID, scope, err)
	}
	if patch == nil {
		e.logger.Info("stored cart not found, clearing", "cart_id", cartID)
		e.store.Dispatch(ctx, ClearCart{})
		if err := e.cartIDs.ClearCartID(ctx); err != nil {
			e.logger.Warn("clear stored cart id failed", "cart_id", cartID, "error", err)
		}
		e.setInventoryKey("")
		return nil
	}

	e.applyPatch(ctx, patch)
	return nil
}

// fetch retrieves the projection for scope. A nil Patch means not found.
func (e *Engine) fetch(ctx context.Context, cartID string, scope cart.Scope) (cart.Patch, error) {
	switch scope {
	case cart.ScopeAddress:
		p, err := e.gateway.RetrieveCartForAddress(ctx, cartID)
		if err != nil || p == nil {
			return nil, err
		}
		return *p, nil
	case cart.ScopeShipping:
		p, err := e.gateway.RetrieveCartForShipping(ctx, cartID)
		if err != nil || p == nil {
			return nil, err
		}
		return *p, nil
	case cart.ScopePayment:
		p, err := e.gateway.RetrieveCartForPayment(ctx, cartID)
		if err != nil || p == nil {
			return nil, err
		}
		return *p, nil
	default:
		c, err := e.gateway.RetrieveCart(ctx, cartID)
		if err != nil || c == nil {
			return nil, err
		}
		return cart.Full{Cart: c}, nil
	}
}
