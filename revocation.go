package credentials

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-credentials/ephemeral"
)

// RevokedSetKey is the shared set holding revoked credentials.
const RevokedSetKey = "revoked_tokens"

// Revocation backends accepted by NewRevocationRegistry.
const (
	RevocationBackendStore  = "store"
	RevocationBackendMemory = "memory"
)

// RevocationRegistry records credentials that must no longer be honored.
// Revocation is one way: there is no un-revoke. Neither method fails loudly.
type RevocationRegistry interface {
	Revoke(ctx context.Context, credential string)
	IsRevoked(ctx context.Context, credential string) bool
}

// NewRevocationRegistry selects a registry implementation by backend name.
// The store backend requires a non nil store, otherwise the memory registry
// is returned.
func NewRevocationRegistry(backend string, store ephemeral.Store, logger Logger) RevocationRegistry {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case RevocationBackendMemory:
		return NewMemoryRevocationRegistry()
	default:
		if store == nil {
			normalizeLogger(logger).Warn("revocation backend %q has no store, using process local registry", backend)
			return NewMemoryRevocationRegistry()
		}
		return NewStoreRevocationRegistry(store, logger)
	}
}

// MemoryRevocationRegistry keeps revoked credentials in process memory. It
// has no visibility across instances.
type MemoryRevocationRegistry struct {
	mu      sync.RWMutex
	revoked map[string]struct{}
}

// NewMemoryRevocationRegistry creates an empty registry.
func NewMemoryRevocationRegistry() *MemoryRevocationRegistry {
	return &MemoryRevocationRegistry{revoked: make(map[string]struct{})}
}

func (r *MemoryRevocationRegistry) Revoke(_ context.Context, credential string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[credential] = struct{}{}
}

func (r *MemoryRevocationRegistry) IsRevoked(_ context.Context, credential string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.revoked[credential]
	return ok
}

// Len returns the number of locally revoked credentials.
func (r *MemoryRevocationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}

// StoreRevocationRegistry keeps revoked credentials in a shared set of the
// ephemeral store. When the store is unreachable the credential is recorded
// in a local fallback set instead, so only this instance rejects it until
// the store recovers.
//
// Entries are never pruned.
type StoreRevocationRegistry struct {
	store    ephemeral.Store
	fallback *MemoryRevocationRegistry
	logger   Logger
}

// NewStoreRevocationRegistry creates a registry backed by store.
func NewStoreRevocationRegistry(store ephemeral.Store, logger Logger) *StoreRevocationRegistry {
	return &StoreRevocationRegistry{
		store:    store,
		fallback: NewMemoryRevocationRegistry(),
		logger:   normalizeLogger(logger),
	}
}

func (r *StoreRevocationRegistry) Revoke(ctx context.Context, credential string) {
	if err := r.store.SetAdd(ctx, RevokedSetKey, credential); err != nil {
		r.logger.Warn("revocation store unavailable, recording credential locally: %v", err)
		r.fallback.Revoke(ctx, credential)
	}
}

func (r *StoreRevocationRegistry) IsRevoked(ctx context.Context, credential string) bool {
	ok, err := r.store.SetContains(ctx, RevokedSetKey, credential)
	if err != nil {
		r.logger.Warn("revocation store lookup failed, checking local set: %v", err)
	} else if ok {
		return true
	}
	return r.fallback.IsRevoked(ctx, credential)
}

// Fallback exposes the local set used while the store is unavailable.
func (r *StoreRevocationRegistry) Fallback() *MemoryRevocationRegistry {
	return r.fallback
}

type noopRevocationRegistry struct{}

func (noopRevocationRegistry) Revoke(context.Context, string) {}

func (noopRevocationRegistry) IsRevoked(context.Context, string) bool { return false }
