package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_PerPrefixCounters(t *testing.T) {
	ids := NewSequentialIDs()

	assert.Equal(t, "cart_0001", ids.Generate("cart"))
	assert.Equal(t, "item_0001", ids.Generate("item"))
	assert.Equal(t, "item_0002", ids.Generate("item"))
	assert.Equal(t, "cart_0002", ids.Generate("cart"))
}

func TestSequentialIDs_Reset(t *testing.T) {
	ids := NewSequentialIDs()
	ids.Generate("order")
	ids.Generate("order")

	ids.Reset()

	assert.Equal(t, "order_0001", ids.Generate("order"))
}
