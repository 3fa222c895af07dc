// Package liquidity tracks the platform float available to instant payout
// rails. Reserve is all-or-nothing: it fails without side effects when the
// float cannot cover the amount.
package liquidity

import (
	"context"
	"fmt"
	"sync"
)

type Gauge interface {
	// Reserve takes amount from the float, reporting false if it is short.
	Reserve(ctx context.Context, amount int64) (bool, error)
	// Release returns a reservation that was not spent.
	Release(ctx context.Context, amount int64) error
	Replenish(ctx context.Context, amount int64) error
	Available(ctx context.Context) (int64, error)
}

type MemoryGauge struct {
	mu        sync.Mutex
	available int64
}

func NewMemoryGauge(initial int64) *MemoryGauge {
	return &MemoryGauge{available: initial}
}

var _ Gauge = (*MemoryGauge)(nil)

func (g *MemoryGauge) Reserve(ctx context.Context, amount int64) (bool, error) {
	if amount < 0 {
		return false, fmt.Errorf("liquidity: negative reservation %d", amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.available < amount {
		return false, nil
	}
	g.available -= amount
	return true, nil
}

func (g *MemoryGauge) Release(ctx context.Context, amount int64) error {
	return g.Replenish(ctx, amount)
}

func (g *MemoryGauge) Replenish(ctx context.Context, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("liquidity: negative amount %d", amount)
	}
	g.mu.Lock()
	g.available += amount
	g.mu.Unlock()
	return nil
}

func (g *MemoryGauge) Available(ctx context.Context) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available, nil
}
