package revocation

import (
	"context"
	"sort"
	"time"
)

// Store persists revocation records and subject watermarks.
//
// Implementations must be safe for concurrent use. Revoke must be atomic per
// token ID: of several concurrent calls for the same ID exactly one succeeds
// and the rest observe ErrAlreadyRevoked. Backend failures are wrapped with
// ErrStorageUnavailable.
type Store interface {
	// Revoke inserts rec and returns the stored copy.
	Revoke(ctx context.Context, rec Record) (Record, error)
	// IsRevoked reports whether a record exists for tokenID.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// ListForSubject returns the subject's records, newest RevokedAt first.
	ListForSubject(ctx context.Context, subjectID string) ([]Record, error)
	// PurgeExpired deletes records and watermarks whose ExpiresAt is strictly
	// before now and returns how many records were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	// AdvanceWatermark raises the subject's ValidSince to wm.ValidSince unless
	// the stored value is already later, and returns the effective watermark.
	AdvanceWatermark(ctx context.Context, wm Watermark) (Watermark, error)
	// Watermark returns the subject's current watermark, if any.
	Watermark(ctx context.Context, subjectID string) (Watermark, bool, error)
}

// SortNewestFirst orders records by RevokedAt descending, breaking ties by TokenID.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].RevokedAt.Equal(records[j].RevokedAt) {
			return records[i].RevokedAt.After(records[j].RevokedAt)
		}
		return records[i].TokenID < records[j].TokenID
	})
}
