// Package ephemeral holds the keyed, TTL capable store used for every short
// lived record: verification codes, pending registrations and the shared
// revocation set.
//
// Single key operations are expected to be atomic at the store level. Callers
// that touch several keys (primary record plus indexes) get no cross key
// atomicity and must tolerate dangling entries.
package ephemeral

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = goerrors.New("ephemeral key not found", goerrors.CategoryNotFound).
	WithTextCode("EPHEMERAL_KEY_NOT_FOUND")

// Store is the contract of the backing ephemeral store.
type Store interface {
	// Set writes value under key. A ttl <= 0 keeps the key until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetAdd(ctx context.Context, set, member string) error
	SetContains(ctx context.Context, set, member string) (bool, error)
	// ScanByPrefix lists the live keys starting with prefix.
	ScanByPrefix(ctx context.Context, prefix string) ([]string, error)
}
