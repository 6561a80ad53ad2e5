// Package commerce is an in-process commerce backend implementing
// engine.Gateway.
//
// It keeps a catalog of variants with stock, shipping options, payment
// providers, carts and orders in memory, and answers with the same shapes and
// error classes a remote backend would: stock shortfalls are inventory
// conflicts, mutations of completed carts are terminal-cart errors.
//
// A Backend also records how often each operation was called and lets tests
// inject failures (FailNext) or block inside a call (OnCall), which is how
// dropped concurrent mutations and rollbacks are exercised.
package commerce
