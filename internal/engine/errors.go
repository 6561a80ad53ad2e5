package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a gateway failure. It is decided once at the gateway
// boundary so callers never re-parse error text.
type ErrorKind int

const (
	// KindGeneric is any failure that cannot be recovered locally.
	// The engine resynchronizes from the backend.
	KindGeneric ErrorKind = iota

	// KindInventoryConflict means the requested quantity exceeds stock.
	// Recovered locally by rolling back the one affected line.
	KindInventoryConflict

	// KindTerminalCart means the cart is already completed.
	// Recovered by clearing local state and starting a new cart.
	KindTerminalCart

	// KindNetwork means the backend could not be reached or the call timed out.
	KindNetwork
)

// String returns the stable name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindGeneric:
		return "generic"
	case KindInventoryConflict:
		return "inventory_conflict"
	case KindTerminalCart:
		return "terminal_cart"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseErrorKind converts a kind name back into an ErrorKind.
func ParseErrorKind(name string) (ErrorKind, error) {
	for _, k := range []ErrorKind{KindGeneric, KindInventoryConflict, KindTerminalCart, KindNetwork} {
		if k.String() == name {
			return k, nil
		}
	}
	return KindGeneric, fmt.Errorf("unknown error kind %q", name)
}

// Backend message signatures recognized by ClassifyMessage.
const (
	InventoryConflictSignature = "required inventory"
	InsufficientStockSignature = "insufficient inventory"
	CartCompletedSignature     = "already completed"
	PaymentSessionsSignature   = "payment sessions"
)

// User-facing failure messages.
const (
	MsgInsufficientInventory = "Insufficient inventory for the requested quantity"
	MsgCartCompleted         = "This cart has already been completed"
)

// GatewayError is a classified failure returned by a Gateway.
type GatewayError struct {
	// Kind is the recovery class of the failure.
	Kind ErrorKind

	// Op is the gateway operation that failed (e.g., "update_line_item").
	Op string

	// Message is the backend's human-readable message.
	Message string

	// Err is the underlying transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayError creates a GatewayError of the given kind.
func NewGatewayError(kind ErrorKind, op, message string) *GatewayError {
	return &GatewayError{Kind: kind, Op: op, Message: message}
}

// ClassifiedError builds a GatewayError from raw backend text, for adapters
// whose transport only reports a message.
func ClassifiedError(op, message string, cause error) *GatewayError {
	return &GatewayError{Kind: ClassifyMessage(message), Op: op, Message: message, Err: cause}
}

// ClassifyMessage maps backend error text to an ErrorKind.
func ClassifyMessage(message string) ErrorKind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, InventoryConflictSignature), strings.Contains(m, InsufficientStockSignature):
		return KindInventoryConflict
	case strings.Contains(m, CartCompletedSignature), strings.Contains(m, PaymentSessionsSignature):
		return KindTerminalCart
	default:
		return KindGeneric
	}
}

// KindOf returns the ErrorKind of err.
// Uses errors.As to handle wrapped errors. Context cancellation and deadline
// errors are network failures; anything else unclassified is generic.
func KindOf(err error) ErrorKind {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindNetwork
	}
	return KindGeneric
}

// IsInventoryConflict reports whether err is an inventory conflict.
func IsInventoryConflict(err error) bool {
	return err != nil && KindOf(err) == KindInventoryConflict
}

// IsTerminalCart reports whether err is a completed-cart conflict.
func IsTerminalCart(err error) bool {
	return err != nil && KindOf(err) == KindTerminalCart
}

// Failure is the error slot of State: a classified, user-facing message.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// failureFrom converts err into the Failure stored in state.
func failureFrom(err error) *Failure {
	kind := KindOf(err)
	switch kind {
	case KindInventoryConflict:
		return &Failure{Kind: kind, Message: MsgInsufficientInventory}
	case KindTerminalCart:
		return &Failure{Kind: kind, Message: MsgCartCompleted}
	}
	var ge *GatewayError
	if errors.As(err, &ge) && ge.Message != "" {
		return &Failure{Kind: kind, Message: ge.Message}
	}
	return &Failure{Kind: kind, Message: err.Error()}
}

// Engine-level errors.
var (
	// ErrOperationInProgress is returned by CompleteOrder when another cart
	// mutation holds the serializer.
	ErrOperationInProgress = errors.New("cart operation already in progress")

	// ErrNoCart means the action needs a cart and none is active.
	ErrNoCart = errors.New("no active cart")

	// ErrOrderNotPlaced means the backend answered without producing an order.
	ErrOrderNotPlaced = errors.New("order not placed")

	// ErrUnknownItem means the line item is not in the current cart.
	ErrUnknownItem = errors.New("line item not in cart")

	// ErrInvalidQuantity means a quantity below 1 was requested.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")

	// ErrMissingArgument means a required identifier or address was empty.
	ErrMissingArgument = errors.New("missing required argument")
)
