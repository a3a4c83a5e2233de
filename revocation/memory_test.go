package revocation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/revocation/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) revocation.Store {
		return revocation.NewMemoryStore()
	})
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := revocation.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.IsRevoked(ctx, "jti"); !errors.Is(err, revocation.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	_, err := s.Revoke(ctx, revocation.Record{TokenID: "jti", SubjectID: "1", ExpiresAt: time.Now()})
	if !errors.Is(err, revocation.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestMemoryStorePurgesExpiredWatermarks(t *testing.T) {
	s := revocation.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if _, err := s.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  "42",
		ValidSince: now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := s.PurgeExpired(ctx, now); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, ok, _ := s.Watermark(ctx, "42"); ok {
		t.Fatal("expected expired watermark to be purged")
	}
}
