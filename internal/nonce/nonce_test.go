package nonce

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func fixedFetcher(n uint64) Fetcher {
	return func(ctx context.Context, address string) (uint64, error) {
		return n, nil
	}
}

func TestNextReturnsOnChainCountWhenNoCache(t *testing.T) {
	m := New(fixedFetcher(5))
	got, err := m.Next(context.Background(), "addr1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestNextAdvancesPastCachedValue(t *testing.T) {
	// On-chain count lags the cache (RPC hasn't caught up to our own
	// broadcast yet); the cache must win.
	m := New(fixedFetcher(1))
	ctx := context.Background()
	first, _ := m.Next(ctx, "addr1")
	second, _ := m.Next(ctx, "addr1")
	if second <= first {
		t.Errorf("expected strictly increasing nonces, got %d then %d", first, second)
	}
}

func TestNextDistinctAddressesAreIndependent(t *testing.T) {
	m := New(fixedFetcher(10))
	ctx := context.Background()
	a, _ := m.Next(ctx, "addr1")
	b, _ := m.Next(ctx, "addr2")
	if a != 10 || b != 10 {
		t.Errorf("expected both addresses to start at 10, got %d and %d", a, b)
	}
}

func TestNextConcurrentCallsYieldDistinctNonces(t *testing.T) {
	m := New(fixedFetcher(0))
	ctx := context.Background()

	const n = 50
	results := make([]uint64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, err := m.Next(ctx, "addr1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, v := range results {
		if seen[v] {
			t.Fatalf("duplicate nonce %d allocated", v)
		}
		seen[v] = true
	}
}

func TestNextFetchErrorPropagates(t *testing.T) {
	m := New(func(ctx context.Context, address string) (uint64, error) {
		return 0, fmt.Errorf("rpc unavailable")
	})
	if _, err := m.Next(context.Background(), "addr1"); err == nil {
		t.Fatal("expected error when fetch fails")
	}
}

func TestNextExpiresAfterTTL(t *testing.T) {
	calls := 0
	m := NewWithTTL(func(ctx context.Context, address string) (uint64, error) {
		calls++
		return uint64(calls), nil
	}, 10*time.Millisecond)

	ctx := context.Background()
	first, _ := m.Next(ctx, "addr1")
	time.Sleep(20 * time.Millisecond)
	second, _ := m.Next(ctx, "addr1")

	if first != 1 {
		t.Errorf("got %d, want 1", first)
	}
	if second != 2 {
		t.Errorf("after TTL expiry, got %d, want fresh fetch result 2", second)
	}
}

func TestResetDropsCachedEntry(t *testing.T) {
	calls := 0
	m := New(func(ctx context.Context, address string) (uint64, error) {
		calls++
		return 3, nil
	})
	ctx := context.Background()
	m.Next(ctx, "addr1")
	m.Reset("addr1")
	got, _ := m.Next(ctx, "addr1")
	if got != 3 {
		t.Errorf("got %d, want 3 after reset", got)
	}
}
