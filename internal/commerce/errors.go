package commerce

import (
	"fmt"

	"github.com/roach88/cartsync/internal/engine"
)

func errCartNotFound(op, cartID string) error {
	return engine.NewGatewayError(engine.KindGeneric, op, fmt.Sprintf("cart %s not found", cartID))
}

func errCartCompleted(op, cartID string) error {
	return engine.NewGatewayError(engine.KindTerminalCart, op, fmt.Sprintf("cart %s is already completed", cartID))
}

func errInsufficientInventory(op, variantID string) error {
	return engine.NewGatewayError(engine.KindInventoryConflict, op,
		fmt.Sprintf("variant %s does not have the required inventory", variantID))
}

func errNotFound(op, what, id string) error {
	return engine.NewGatewayError(engine.KindGeneric, op, fmt.Sprintf("%s %s not found", what, id))
}

func errInvalid(op, msg string) error {
	return engine.NewGatewayError(engine.KindGeneric, op, msg)
}
