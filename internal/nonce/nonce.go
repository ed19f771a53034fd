// Package nonce manages account-model transaction nonces across
// concurrent swap operations. The manager is an explicitly constructed
// object, never a process-wide singleton, so multiple engines under
// test can run with independent caches.
package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultTTL = 180 * time.Second

// entry mirrors the NonceEntry auxiliary type: the next nonce to hand
// out for an address, and when it was last refreshed from the chain.
type entry struct {
	value         uint64
	lastUpdatedAt time.Time
}

// Fetcher retrieves the on-chain transaction count for an address. It
// is called outside the manager's lock so a slow RPC never blocks
// other addresses' nonce allocation.
type Fetcher func(ctx context.Context, address string) (uint64, error)

// Manager is a process-wide nonce cache scoped to one account-model
// chain. Construct one per chain the engine transacts on and inject it
// wherever transaction building happens.
type Manager struct {
	mu      sync.Mutex
	ttl     time.Duration
	fetch   Fetcher
	entries map[string]entry
}

// New creates a nonce manager backed by fetch, using the default
// 180-second cache TTL.
func New(fetch Fetcher) *Manager {
	return &Manager{
		ttl:     defaultTTL,
		fetch:   fetch,
		entries: make(map[string]entry),
	}
}

// NewWithTTL is New with an explicit TTL, used by tests that need to
// force cache expiry without sleeping.
func NewWithTTL(fetch Fetcher, ttl time.Duration) *Manager {
	m := New(fetch)
	m.ttl = ttl
	return m
}

// Next returns the next nonce to use for address and advances the
// cache so a concurrent call for the same address receives a distinct,
// strictly greater value. The on-chain fetch happens before the lock
// is taken; only the cache read/update is serialized.
func (m *Manager) Next(ctx context.Context, address string) (uint64, error) {
	n, err := m.fetch(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("nonce: fetch transaction count for %s: %w", address, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cached, ok := m.entries[address]
	now := time.Now()
	if ok && now.Sub(cached.lastUpdatedAt) < m.ttl && cached.value >= n {
		next := cached.value
		m.entries[address] = entry{value: next + 1, lastUpdatedAt: cached.lastUpdatedAt}
		return next, nil
	}

	m.entries[address] = entry{value: n + 1, lastUpdatedAt: now}
	return n, nil
}

// Reset drops the cached entry for address, forcing the next Next call
// to trust the on-chain fetch unconditionally. Used after a
// transaction broadcast fails, so a bad cached nonce cannot poison
// subsequent attempts.
func (m *Manager) Reset(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, address)
}
