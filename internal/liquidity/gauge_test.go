package liquidity

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

func exerciseGauge(t *testing.T, g Gauge) {
	t.Helper()
	ctx := context.Background()

	ok, err := g.Reserve(ctx, 600)
	if err != nil || !ok {
		t.Fatalf("Reserve(600) = %v, %v", ok, err)
	}
	ok, err = g.Reserve(ctx, 500)
	if err != nil || ok {
		t.Fatalf("Reserve(500) with 400 left = %v, %v; want false", ok, err)
	}
	if avail, _ := g.Available(ctx); avail != 400 {
		t.Fatalf("Available = %d, want 400 (failed reserve must not change the float)", avail)
	}
	if err := g.Release(ctx, 600); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := g.Replenish(ctx, 1000); err != nil {
		t.Fatalf("Replenish: %v", err)
	}
	if avail, _ := g.Available(ctx); avail != 2000 {
		t.Fatalf("Available = %d, want 2000", avail)
	}
	if _, err := g.Reserve(ctx, -1); err == nil {
		t.Fatal("negative reservation accepted")
	}
}

func TestMemoryGauge(t *testing.T) {
	exerciseGauge(t, NewMemoryGauge(1000))
}

func TestMemoryGauge_ConcurrentReservationsNeverOvercommit(t *testing.T) {
	g := NewMemoryGauge(1000)
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Reserve(ctx, 100); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 10 {
		t.Fatalf("granted %d reservations of 100 from 1000", granted)
	}
}

// Runs against a real Redis when REDIS_ADDR is set.
func TestRedisGauge(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	ctx := context.Background()
	key := "gigwallet:test:float:" + t.Name()
	rdb.Del(ctx, key)
	defer rdb.Del(ctx, key)

	g := NewRedisGauge(rdb, key)
	if err := g.Seed(ctx, 1000); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	exerciseGauge(t, g)
}
