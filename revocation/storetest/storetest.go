// Package storetest holds a behavioural suite every revocation.Store backend
// must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goToken/revocation"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) revocation.Store

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RevokeThenIsRevoked", func(t *testing.T) { testRevokeThenIsRevoked(t, newStore(t)) })
	t.Run("DuplicateRevoke", func(t *testing.T) { testDuplicateRevoke(t, newStore(t)) })
	t.Run("ConcurrentRevokeSingleWinner", func(t *testing.T) { testConcurrentRevoke(t, newStore(t)) })
	t.Run("ListForSubjectNewestFirst", func(t *testing.T) { testListNewestFirst(t, newStore(t)) })
	t.Run("PurgeStrictBoundary", func(t *testing.T) { testPurgeBoundary(t, newStore(t)) })
	t.Run("WatermarkMonotonic", func(t *testing.T) { testWatermarkMonotonic(t, newStore(t)) })
	t.Run("WatermarkMillisecondCutoff", func(t *testing.T) { testWatermarkMillisecond(t, newStore(t)) })
	t.Run("RejectsInvalidRecord", func(t *testing.T) { testRejectsInvalid(t, newStore(t)) })
}

func record(id, subject string, revokedAt, expiresAt time.Time) revocation.Record {
	return revocation.Record{
		TokenID:   id,
		SubjectID: subject,
		TokenType: "refresh",
		RevokedAt: revokedAt,
		ExpiresAt: expiresAt,
		Reason:    revocation.ReasonLogout,
	}
}

func testRevokeThenIsRevoked(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	stored, err := s.Revoke(ctx, record("jti-1", "42", now, now.Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, "jti-1", stored.TokenID)
	require.Equal(t, revocation.ReasonLogout, stored.Reason)

	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = s.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, revoked)
}

func testDuplicateRevoke(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	_, err := s.Revoke(ctx, record("jti-dup", "42", now, now.Add(time.Hour)))
	require.NoError(t, err)

	_, err = s.Revoke(ctx, record("jti-dup", "42", now.Add(time.Second), now.Add(time.Hour)))
	require.ErrorIs(t, err, revocation.ErrAlreadyRevoked)

	records, err := s.ListForSubject(ctx, "42")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].RevokedAt.Equal(now), "first revocation must be kept")
}

func testConcurrentRevoke(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	const workers = 16
	var wins, dups atomic.Int32
	start := make(chan struct{})
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.Revoke(ctx, record("jti-race", "42", now, now.Add(time.Hour)))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, revocation.ErrAlreadyRevoked):
				dups.Add(1)
			default:
				errs <- err
			}
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected revoke error: %v", err)
	}
	require.EqualValues(t, 1, wins.Load())
	require.EqualValues(t, workers-1, dups.Load())
}

func testListNewestFirst(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		_, err := s.Revoke(ctx, record(fmt.Sprintf("jti-%d", i), "42", now.Add(time.Duration(i)*time.Minute), now.Add(time.Hour)))
		require.NoError(t, err)
	}
	_, err := s.Revoke(ctx, record("jti-other", "7", now, now.Add(time.Hour)))
	require.NoError(t, err)

	records, err := s.ListForSubject(ctx, "42")
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, "jti-2", records[0].TokenID)
	require.Equal(t, "jti-1", records[1].TokenID)
	require.Equal(t, "jti-0", records[2].TokenID)
	for _, rec := range records {
		require.Equal(t, "42", rec.SubjectID)
		require.Equal(t, "refresh", rec.TokenType)
	}

	empty, err := s.ListForSubject(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testPurgeBoundary(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	_, err := s.Revoke(ctx, record("jti-old", "42", now.Add(-2*time.Hour), now.Add(-time.Second)))
	require.NoError(t, err)
	_, err = s.Revoke(ctx, record("jti-new", "42", now.Add(-time.Hour), now.Add(time.Second)))
	require.NoError(t, err)

	removed, err := s.PurgeExpired(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	revoked, err := s.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	require.False(t, revoked)
	revoked, err = s.IsRevoked(ctx, "jti-new")
	require.NoError(t, err)
	require.True(t, revoked)

	records, err := s.ListForSubject(ctx, "42")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "jti-new", records[0].TokenID)

	removed, err = s.PurgeExpired(ctx, now.Add(time.Second))
	require.NoError(t, err)
	require.EqualValues(t, 0, removed, "expiresAt equal to now must be kept")
}

func testWatermarkMonotonic(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	base := time.Now().Truncate(time.Second)

	_, ok, err := s.Watermark(ctx, "42")
	require.NoError(t, err)
	require.False(t, ok)

	got, err := s.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  "42",
		ValidSince: base.Add(500 * time.Millisecond),
		ExpiresAt:  base.Add(time.Hour),
		Reason:     revocation.ReasonLogoutAll,
	})
	require.NoError(t, err)
	require.True(t, got.ValidSince.Equal(base), "validSince is truncated to the second")

	got, err = s.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  "42",
		ValidSince: base.Add(-time.Minute),
		ExpiresAt:  base.Add(time.Hour),
		Reason:     revocation.ReasonAdminRevoke,
	})
	require.NoError(t, err)
	require.True(t, got.ValidSince.Equal(base), "watermark must not move backwards")
	require.Equal(t, revocation.ReasonLogoutAll, got.Reason)

	_, err = s.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  "42",
		ValidSince: base.Add(time.Minute),
		ExpiresAt:  base.Add(2 * time.Hour),
		Reason:     revocation.ReasonPasswordChange,
	})
	require.NoError(t, err)

	wm, ok, err := s.Watermark(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, wm.ValidSince.Equal(base.Add(time.Minute)))
	require.Equal(t, revocation.ReasonPasswordChange, wm.Reason)
	require.True(t, wm.Covers(base))
	require.False(t, wm.Covers(base.Add(time.Minute)))
}

func testWatermarkMillisecond(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	second := time.Now().UTC().Truncate(time.Second)
	cut := second.Add(700 * time.Millisecond)

	_, err := s.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  "ms",
		ValidSince: cut.Add(250 * time.Microsecond),
		ExpiresAt:  second.Add(time.Hour),
		Reason:     revocation.ReasonLogoutAll,
	})
	require.NoError(t, err)

	wm, ok, err := s.Watermark(ctx, "ms")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, wm.ValidSince.Equal(cut), "cut-off must round-trip at millisecond precision, got %v", wm.ValidSince)
	require.True(t, wm.Covers(second.Add(100*time.Millisecond)), "earlier in the same second")
	require.True(t, wm.Covers(cut.Add(-time.Millisecond)))
	require.False(t, wm.Covers(cut))
	require.False(t, wm.Covers(cut.Add(time.Millisecond)))
}

func testRejectsInvalid(t *testing.T, s revocation.Store) {
	ctx := context.Background()
	now := time.Now()

	_, err := s.Revoke(ctx, record("", "42", now, now.Add(time.Hour)))
	require.ErrorIs(t, err, revocation.ErrInvalidRecord)
	_, err = s.Revoke(ctx, record("jti", "", now, now.Add(time.Hour)))
	require.ErrorIs(t, err, revocation.ErrInvalidRecord)
	_, err = s.Revoke(ctx, record("jti", "42", now, time.Time{}))
	require.ErrorIs(t, err, revocation.ErrInvalidRecord)
	_, err = s.AdvanceWatermark(ctx, revocation.Watermark{SubjectID: "42"})
	require.ErrorIs(t, err, revocation.ErrInvalidRecord)
}
