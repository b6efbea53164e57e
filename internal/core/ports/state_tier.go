package ports

import "context"

// StateTier is one of the two key-value persistence tiers backing the auth
// state store: an ephemeral session-scoped tier and a durable tier. Only
// the auth state store writes identity/token keys; every other component
// reads through it.
type StateTier interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
