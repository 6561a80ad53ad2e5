package commerce

import (
	"github.com/google/uuid"
)

// IDGenerator produces ids for carts, line items, sessions and orders.
type IDGenerator interface {
	Generate(prefix string) string
}

// UUIDv7Generator generates "<prefix>_<uuidv7>" ids.
//
// UUIDv7 ids are time-ordered, so ids created later sort later.
type UUIDv7Generator struct{}

// Generate returns a new id with the given prefix.
func (UUIDv7Generator) Generate(prefix string) string {
	return prefix + "_" + uuid.Must(uuid.NewV7()).String()
}
