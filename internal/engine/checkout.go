package engine

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/cartsync/internal/cart"
)

// Metadata keys carrying invoice details in the address payload.
const (
	MetaInvoiceCompany = "invoice_company_name"
	MetaInvoiceTaxID   = "invoice_tax_id"
)

// InvoiceDetails are the optional company invoice fields of the address step.
type InvoiceDetails struct {
	CompanyName string
	TaxID       string
}

// AddressInput is the address step form.
type AddressInput struct {
	Email           string
	ShippingAddress cart.Address
	// BillingAddress defaults to ShippingAddress when nil or empty.
	BillingAddress *cart.Address
	Invoice        *InvoiceDetails
}

// BuildAddressPayload validates and normalizes in into the gateway payload.
// Strings are NFC-normalized and trimmed.
func BuildAddressPayload(in AddressInput) (AddressPayload, error) {
	ship := normalizeAddress(in.ShippingAddress)
	if ship.IsZero() {
		return AddressPayload{}, fmt.Errorf("shipping address: %w", ErrMissingArgument)
	}
	bill := ship
	if in.BillingAddress != nil {
		if b := normalizeAddress(*in.BillingAddress); !b.IsZero() {
			bill = b
		}
	}

	payload := AddressPayload{
		Email:           normalizeText(in.Email),
		ShippingAddress: ship,
		BillingAddress:  bill,
	}
	if in.Invoice != nil {
		md := make(map[string]string, 2)
		if v := normalizeText(in.Invoice.CompanyName); v != "" {
			md[MetaInvoiceCompany] = v
		}
		if v := normalizeText(in.Invoice.TaxID); v != "" {
			md[MetaInvoiceTaxID] = v
		}
		if len(md) > 0 {
			payload.Metadata = md
		}
	}
	return payload, nil
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func normalizeAddress(a cart.Address) cart.Address {
	return cart.Address{
		FirstName:   normalizeText(a.FirstName),
		LastName:    normalizeText(a.LastName),
		Company:     normalizeText(a.Company),
		Address1:    normalizeText(a.Address1),
		Address2:    normalizeText(a.Address2),
		City:        normalizeText(a.City),
		PostalCode:  normalizeText(a.PostalCode),
		Province:    normalizeText(a.Province),
		CountryCode: cart.NormalizeCountryCode(a.CountryCode),
		Phone:       normalizeText(a.Phone),
	}
}

// SetAddress sends the address step.
//
// A structured success merges only the fields present in the response. A
// non-"success" message is an error. Any other answer falls back to an
// address-scoped refresh.
func (e *Engine) SetAddress(ctx context.Context, in AddressInput) bool {
	const op = "set_address"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		payload, err := BuildAddressPayload(in)
		if err != nil {
			e.fail(ctx, op, fmt.Errorf("set address: %w", err))
			return OutcomeError
		}
		cartID, ok := e.mutableCartID(ctx, op)
		if !ok {
			return e.outcomeAfterGuard()
		}

		res, err := e.gateway.SetAddresses(ctx, cartID, payload)
		if err != nil {
			return e.recoverFrom(ctx, op, err)
		}

		switch {
		case res.Success && res.Cart != nil:
			if !e.applyPatch(ctx, *res.Cart) {
				return OutcomeTerminal
			}
		case res.Message != "" && res.Message != "success":
			e.fail(ctx, op, NewGatewayError(KindGeneric, "set_addresses", res.Message))
			return OutcomeError
		default:
			if err := e.refresh(ctx, cart.ScopeAddress); err != nil {
				e.fail(ctx, op, err)
				return OutcomeError
			}
		}
		e.cache.Invalidate(TagCart)
		return OutcomeOK
	})
}

// SetShipping attaches a shipping method. data carries method-specific values
// such as a pickup point reference and may be nil.
func (e *Engine) SetShipping(ctx context.Context, methodID string, data map[string]any) bool {
	const op = "set_shipping"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		if methodID == "" {
			e.fail(ctx, op, fmt.Errorf("set shipping: method id: %w", ErrMissingArgument))
			return OutcomeError
		}
		cartID, ok := e.mutableCartID(ctx, op)
		if !ok {
			return e.outcomeAfterGuard()
		}

		patch, err := e.gateway.SetShippingMethod(ctx, ShippingInput{
			CartID:           cartID,
			ShippingMethodID: methodID,
			Data:             data,
		})
		if err != nil {
			return e.recoverFrom(ctx, op, err)
		}
		if patch == nil {
			if err := e.refresh(ctx, cart.ScopeShipping); err != nil {
				e.fail(ctx, op, err)
				return OutcomeError
			}
		} else if !e.applyPatch(ctx, *patch) {
			return OutcomeTerminal
		}
		e.cache.Invalidate(TagCart)
		return OutcomeOK
	})
}

// SetPayment selects providerID as the payment method. A session is only
// initiated when the cart has no pending session for the provider, so repeated
// calls do not create duplicates.
func (e *Engine) SetPayment(ctx context.Context, providerID string) bool {
	const op = "set_payment"
	return e.mutate(ctx, op, func(ctx context.Context) string {
		if providerID == "" {
			e.fail(ctx, op, fmt.Errorf("set payment: provider id: %w", ErrMissingArgument))
			return OutcomeError
		}
		if _, ok := e.mutableCartID(ctx, op); !ok {
			return e.outcomeAfterGuard()
		}
		cur := e.store.State().Cart

		if _, pending := cur.PendingSession(providerID); !pending {
			if err := e.gateway.InitiatePaymentSession(ctx, cur, providerID); err != nil {
				return e.recoverFrom(ctx, op, err)
			}
		} else {
			e.logger.Debug("reusing pending payment session", "cart_id", cur.ID, "provider_id", providerID)
		}

		c, err := e.gateway.SelectPaymentSession(ctx, cur.ID, providerID)
		if err != nil {
			return e.recoverFrom(ctx, op, err)
		}
		if !e.applyCart(ctx, c) {
			return OutcomeTerminal
		}
		e.cache.Invalidate(TagCart)
		return OutcomeOK
	})
}

// mutableCartID returns the id of the cart in state when it can be mutated.
// A missing cart sets the error slot; a completed cart is cleared.
func (e *Engine) mutableCartID(ctx context.Context, op string) (string, bool) {
	cur := e.store.State().Cart
	switch {
	case cur == nil:
		e.fail(ctx, op, ErrNoCart)
		return "", false
	case cur.IsCompleted():
		e.resetCart(ctx, cur.ID)
		return "", false
	}
	return cur.ID, true
}

// outcomeAfterGuard reports the outcome of a mutation refused by mutableCartID.
func (e *Engine) outcomeAfterGuard() string {
	if e.store.State().Error != nil {
		return OutcomeError
	}
	return OutcomeTerminal
}
