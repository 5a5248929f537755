package ports

import (
	"context"
	"strings"
)

// StoredResponse is the create-order response replayed for a reused key.
type StoredResponse struct {
	StatusCode int
	Body       []byte
	OrderID    string
}

// IdempotencyStore lets clients retry checkout without placing a second order.
// Save keeps the first response stored for a key.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, response StoredResponse) error
}

// ScopedKey namespaces a client-supplied key by user so keys never collide across accounts.
func ScopedKey(userID, key string) string {
	return strings.TrimSpace(userID) + ":" + strings.TrimSpace(key)
}
