// Package harness runs checkout scenarios against the cart engine.
//
// A scenario seeds an in-process commerce backend from its catalog, drives the
// engine through a flow of public actions and checks the resulting trace and
// final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	country_code: de
//	catalog:
//	  region: { id: reg_eu, currency_code: eur }
//	  variants:
//	    - { id: var_a, product_id: prod_a, price: 1000, stock: 5, manage_inventory: true }
//	setup:
//	  - action: set_stock
//	    args: { variant_id: var_a, stock: 1 }
//	flow:
//	  - invoke: add_item
//	    args: { variant_id: var_a, quantity: 1 }
//	    expect:
//	      accepted: true
//	      error_kind: none
//	  - invoke: backend.fail_next
//	    args: { op: update_line_item, kind: network }
//	assertions:
//	  - type: trace_count
//	    event: call
//	    action: fetch_cart_items_inventory
//	    count: 1
//	  - type: final_state
//	    expect: { item_count: 1, stage: address }
//
// Setup steps and flow steps prefixed with "backend." act on the backend
// directly (set_stock, fail_next, complete_cart). Other flow steps are engine
// actions named after their operation (add_item, update_item, remove_item,
// set_address, set_shipping, set_payment, complete_order, refresh_cart,
// refresh_inventory, clear_error). update_item and remove_item accept either
// item_id or variant_id.
//
// # Trace
//
// The trace interleaves three event types in the order they happen:
//   - invoke: a flow step, with its args and outcome
//   - call: a backend operation, counted when it starts
//   - dispatch: a state store action, with the cart id and logical clock
//
// # Deterministic Testing
//
// Every run uses sequential ids (cart_0001, item_0001, ...), a stepping wall
// clock starting at testutil.Epoch and a fresh engine clock, so traces are
// identical across runs and can be compared against golden files.
package harness
