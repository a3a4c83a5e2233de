package goToken

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func refreshConcurrently(t *testing.T, engine *Engine, refresh string, n int) (success, revoked int) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(n)
	start := make(chan struct{})
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Refresh(context.Background(), refresh)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, ErrTokenRevoked):
			revoked++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	return success, revoked
}

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	env := newTestEnv(t, func(c *Config) {
		c.Rotation.SingleWinner = true
		c.Security.EnableRefreshThrottle = false
	})
	pair := env.login(t)

	const n = 16
	success, revoked := refreshConcurrently(t, env.engine, pair.RefreshToken, n)
	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if revoked != n-1 {
		t.Fatalf("expected %d revoked refreshes, got %d", n-1, revoked)
	}
}

func TestRefreshConcurrencyDefaultCountsRaces(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Security.EnableRefreshThrottle = false })
	pair := env.login(t)

	const n = 16
	success, revoked := refreshConcurrently(t, env.engine, pair.RefreshToken, n)
	if success < 1 {
		t.Fatal("expected at least one refresh success")
	}
	if success+revoked != n {
		t.Fatalf("expected %d outcomes, got %d", n, success+revoked)
	}

	snap := env.engine.MetricsSnapshot()
	if got := snap.Counters[MetricRefreshRaceDetected]; got != uint64(success-1) {
		t.Fatalf("expected %d detected races, got %d", success-1, got)
	}
	if _, err := env.engine.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected rotated token to stay revoked, got %v", err)
	}
}
