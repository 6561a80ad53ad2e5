package engine

import (
	"github.com/roach88/cartsync/internal/cart"
)

// State is the engine's state shape.
//
// INVARIANTS:
//   - LastUpdated only moves forward, and only on SetCart, applied
//     UpdateCart and ClearCart
//   - SetError never touches Cart
//   - ClearCart resets everything but Loading, Inventory included
type State struct {
	Cart        *cart.Cart     `json:"cart,omitempty"`
	Loading     bool           `json:"loading"`
	Error       *Failure       `json:"error,omitempty"`
	LastUpdated int64          `json:"last_updated"`
	Inventory   cart.Inventory `json:"inventory,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	out.Cart = s.Cart.Clone()
	out.Inventory = s.Inventory.Clone()
	if s.Error != nil {
		f := *s.Error
		out.Error = &f
	}
	return out
}

// Action is one of the closed set of state transitions.
// The set is closed by the unexported marker method.
type Action interface {
	actionName() string
}

// SetLoading toggles the loading flag.
type SetLoading struct {
	Loading bool `json:"loading"`
}

// SetCart replaces the cart wholesale.
type SetCart struct {
	Cart *cart.Cart `json:"cart"`
}

// SetError sets or clears (nil) the error slot.
type SetError struct {
	Failure *Failure `json:"failure"`
}

// UpdateCart merges a scoped projection onto the existing cart.
// It is a no-op when no cart is present.
type UpdateCart struct {
	Patch cart.Patch `json:"patch"`
}

// ClearCart resets state to empty, inventory included. Loading is kept.
type ClearCart struct{}

// SetInventory replaces the inventory map wholesale.
type SetInventory struct {
	Inventory cart.Inventory `json:"inventory"`
}

func (SetLoading) actionName() string   { return "set_loading" }
func (SetCart) actionName() string      { return "set_cart" }
func (SetError) actionName() string     { return "set_error" }
func (UpdateCart) actionName() string   { return "update_cart" }
func (ClearCart) actionName() string    { return "clear_cart" }
func (SetInventory) actionName() string { return "set_inventory" }

// ActionName returns the stable name of an action (e.g., "set_cart").
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}

// Reduce applies action to state and returns the new state.
//
// Reduce never modifies the previous state's cart or inventory; callers may
// keep old snapshots. The clock is advanced only for cart-affecting actions.
func Reduce(state State, action Action, clock *Clock) State {
	next := state

	switch a := action.(type) {
	case SetLoading:
		next.Loading = a.Loading

	case SetCart:
		next.Cart = a.Cart.Clone()
		next.Error = nil
		next.LastUpdated = clock.Next()

	case SetError:
		if a.Failure == nil {
			next.Error = nil
		} else {
			f := *a.Failure
			next.Error = &f
		}

	case UpdateCart:
		if state.Cart == nil || a.Patch == nil {
			return state
		}
		next.Cart = cart.Merge(state.Cart, a.Patch)
		next.Error = nil
		next.LastUpdated = clock.Next()

	case ClearCart:
		// The loading flag belongs to the running mutation, not the cart.
		next = State{Loading: state.Loading, LastUpdated: clock.Next()}

	case SetInventory:
		next.Inventory = a.Inventory.Clone()
	}

	return next
}
