package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullCart() *Cart {
	return &Cart{
		ID:       "cart_1",
		RegionID: "reg_eu",
		Email:    "a@b.com",
		Items: []LineItem{
			{ID: "li_a", VariantID: "var_a", ProductID: "prod_a", Quantity: 2, UnitPrice: 1000, Subtotal: 2000},
			{ID: "li_b", VariantID: "var_b", ProductID: "prod_b", Quantity: 1, UnitPrice: 500, Subtotal: 500},
		},
		ShippingAddress: &Address{FirstName: "Ada", Address1: "1 Main St", City: "Berlin", CountryCode: "de"},
		BillingAddress:  &Address{FirstName: "Ada", Address1: "1 Main St", City: "Berlin", CountryCode: "de"},
		ShippingMethods: []ShippingMethod{{ID: "sm_1", ShippingOptionID: "so_std", Amount: 500}},
		PaymentCollection: &PaymentCollection{
			ID:       "paycol_1",
			Sessions: []PaymentSession{{ID: "ps_1", ProviderID: "pp_system", Status: PaymentSessionPending}},
		},
		Totals: Totals{Subtotal: 2500, ItemTotal: 2500, ShippingTotal: 500, Total: 3000},
	}
}

func TestClone_IsDeep(t *testing.T) {
	c := fullCart()
	cp := c.Clone()

	cp.Items[0].Quantity = 9
	cp.ShippingAddress.City = "Paris"
	cp.PaymentCollection.Sessions[0].Status = PaymentSessionCanceled

	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "Berlin", c.ShippingAddress.City)
	assert.Equal(t, PaymentSessionPending, c.PaymentCollection.Sessions[0].Status)

	var nilCart *Cart
	assert.Nil(t, nilCart.Clone())
}

func TestWithItemQuantity_TouchesOnlyThatLine(t *testing.T) {
	c := fullCart()
	out := c.WithItemQuantity("li_a", 5)

	a, ok := out.Item("li_a")
	require.True(t, ok)
	assert.Equal(t, 5, a.Quantity)
	assert.Equal(t, int64(5000), a.Subtotal)

	b, _ := out.Item("li_b")
	assert.Equal(t, 1, b.Quantity)
	assert.Equal(t, c.Totals, out.Totals, "cart totals stay server-owned")
	assert.Equal(t, 2, c.Items[0].Quantity, "source cart untouched")
}

func TestMerge_AddressPatchSkipsOmittedFields(t *testing.T) {
	c := fullCart()
	patch := AddressPatch{
		ShippingAddress: &Address{FirstName: "Grace", Address1: "2 Side St", City: "Hamburg", CountryCode: "de"},
	}

	out := Merge(c, patch)

	assert.Equal(t, "a@b.com", out.Email, "omitted email must not overwrite")
	assert.Equal(t, "Hamburg", out.ShippingAddress.City)
	assert.Equal(t, "Berlin", out.BillingAddress.City)
	assert.Equal(t, c.ShippingMethods, out.ShippingMethods)
	assert.Equal(t, c.PaymentCollection, out.PaymentCollection)
	assert.Equal(t, c.Items, out.Items)
}

func TestMerge_ShippingPatchOwnsMethods(t *testing.T) {
	c := fullCart()
	totals := Totals{Subtotal: 2500, ItemTotal: 2500, ShippingTotal: 900, Total: 3400}
	out := Merge(c, ShippingPatch{
		ShippingMethods: []ShippingMethod{{ID: "sm_2", ShippingOptionID: "so_express", Amount: 900}},
		Totals:          &totals,
	})

	require.Len(t, out.ShippingMethods, 1)
	assert.Equal(t, "so_express", out.ShippingMethods[0].ShippingOptionID)
	assert.Equal(t, totals, out.Totals)
	assert.Equal(t, c.ShippingAddress, out.ShippingAddress)
	assert.Equal(t, c.PaymentCollection, out.PaymentCollection)
}

func TestMerge_PaymentPatchOwnsCollection(t *testing.T) {
	c := fullCart()
	out := Merge(c, PaymentPatch{PaymentCollection: nil})

	assert.Nil(t, out.PaymentCollection)
	assert.Equal(t, c.Totals, out.Totals, "omitted totals are kept")
	assert.Equal(t, c.ShippingMethods, out.ShippingMethods)
}

func TestMerge_NilBaseStaysNil(t *testing.T) {
	assert.Nil(t, Merge(nil, AddressPatch{}))
}

func TestMerge_CompletionMarkerPropagates(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := PaymentPatch{CompletedAt: &now}
	assert.True(t, p.Completed())
	assert.True(t, Merge(fullCart(), p).IsCompleted())
}

func TestProjections_RoundTripThroughMerge(t *testing.T) {
	src := fullCart()
	base := &Cart{ID: src.ID, Items: src.Items}

	out := Merge(Merge(Merge(base, ProjectAddress(src)), ProjectShipping(src)), ProjectPayment(src))

	assert.Equal(t, src.Email, out.Email)
	assert.Equal(t, src.ShippingAddress, out.ShippingAddress)
	assert.Equal(t, src.ShippingMethods, out.ShippingMethods)
	assert.Equal(t, src.PaymentCollection, out.PaymentCollection)
	assert.Equal(t, src.Totals, out.Totals)
}

func TestParseScope(t *testing.T) {
	tests := []struct {
		in      string
		want    Scope
		wantErr bool
	}{
		{"", ScopeFull, false},
		{"full", ScopeFull, false},
		{"address", ScopeAddress, false},
		{"shipping", ScopeShipping, false},
		{"payment", ScopePayment, false},
		{"billing", ScopeFull, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScope(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPendingSession(t *testing.T) {
	c := fullCart()
	s, ok := c.PendingSession("pp_system")
	require.True(t, ok)
	assert.Equal(t, "ps_1", s.ID)

	_, ok = c.PendingSession("pp_stripe")
	assert.False(t, ok)

	c.PaymentCollection.Sessions[0].Status = PaymentSessionAuthorized
	_, ok = c.PendingSession("pp_system")
	assert.False(t, ok)
}
