package engine

import (
	"context"
	"fmt"
)

// CompleteOrder places the order for cartID, or for the active cart when
// cartID is empty.
//
// When an order or order set is produced, local state and local cart storage
// are cleared and the cache is invalidated. Unlike the other actions, failures
// are returned rather than stored: a gateway error, or a "cart" result, which
// wraps ErrOrderNotPlaced. A dropped call returns ErrOperationInProgress.
func (e *Engine) CompleteOrder(ctx context.Context, skipRedirectCheck bool, cartID string) (OrderResult, error) {
	const op = "complete_order"
	var (
		result OrderResult
		err    error
	)
	accepted := e.mutate(ctx, op, func(ctx context.Context) string {
		id := cartID
		if id == "" {
			id, err = e.activeCartID(ctx)
			if err != nil {
				err = fmt.Errorf("complete order: load cart id: %w", err)
				return OutcomeError
			}
		}
		if id == "" {
			err = fmt.Errorf("complete order: %w", ErrNoCart)
			return OutcomeError
		}

		result, err = e.gateway.PlaceOrder(ctx, id, skipRedirectCheck)
		if err != nil {
			err = fmt.Errorf("complete order %s: %w", id, err)
			return OutcomeError
		}

		switch result.Type {
		case OrderResultOrder, OrderResultOrderSet:
			e.resetCart(ctx, id)
			e.logger.Info("order placed", "cart_id", id, "type", string(result.Type))
			return OutcomeOK
		default:
			if result.Cart != nil {
				e.applyCart(ctx, result.Cart)
			}
			err = fmt.Errorf("complete order %s: %w: %s", id, ErrOrderNotPlaced, result.Message)
			return OutcomeError
		}
	})
	if !accepted {
		return OrderResult{}, ErrOperationInProgress
	}
	return result, err
}
