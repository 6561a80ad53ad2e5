// Package cart defines the client-side cart model kept in sync with the
// commerce backend.
//
// The package holds three kinds of things:
//
//   - The Cart entity and its parts (LineItem, Address, ShippingMethod,
//     PaymentCollection, Totals).
//   - Scoped partial projections (AddressPatch, ShippingPatch, PaymentPatch).
//     Each patch owns a fixed set of cart fields and merges only those.
//   - Pure derivations: item count, checkout readiness, and the per-variant
//     inventory key used to decide when the stock read model is stale.
//
// Nothing in this package performs I/O. Values are treated as immutable once
// handed to the engine; use Clone before modifying a cart you did not build.
package cart
