package credentials_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-credentials/ephemeral"
)

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps a Store and fails selected operations while down is set
type flakyStore struct {
	ephemeral.Store
	down       atomic.Bool
	failDelete atomic.Bool
}

func (s *flakyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.Set(ctx, key, value, ttl)
}

func (s *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.down.Load() {
		return nil, errStoreDown
	}
	return s.Store.Get(ctx, key)
}

func (s *flakyStore) Delete(ctx context.Context, keys ...string) error {
	if s.down.Load() || s.failDelete.Load() {
		return errStoreDown
	}
	return s.Store.Delete(ctx, keys...)
}

func (s *flakyStore) SetAdd(ctx context.Context, set, member string) error {
	if s.down.Load() {
		return errStoreDown
	}
	return s.Store.SetAdd(ctx, set, member)
}

func (s *flakyStore) SetContains(ctx context.Context, set, member string) (bool, error) {
	if s.down.Load() {
		return false, errStoreDown
	}
	return s.Store.SetContains(ctx, set, member)
}

// barrierStore holds the first n reads of keys with the given prefix until
// all n readers have arrived, forcing them to observe the same value
type barrierStore struct {
	ephemeral.Store
	prefix string

	mu      sync.Mutex
	waiting int
	release chan struct{}
}

func newBarrierStore(store ephemeral.Store, prefix string, n int) *barrierStore {
	return &barrierStore{
		Store:   store,
		prefix:  prefix,
		waiting: n,
		release: make(chan struct{}),
	}
}

func (s *barrierStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.Store.Get(ctx, key)
	if !strings.HasPrefix(key, s.prefix) {
		return value, err
	}

	s.mu.Lock()
	if s.waiting == 0 {
		s.mu.Unlock()
		return value, err
	}
	s.waiting--
	if s.waiting == 0 {
		close(s.release)
	}
	s.mu.Unlock()

	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return value, err
}
