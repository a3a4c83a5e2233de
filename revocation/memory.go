package revocation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps revocation state in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Record
	bySubject  map[string]map[string]struct{}
	watermarks map[string]Watermark
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]Record),
		bySubject:  make(map[string]map[string]struct{}),
		watermarks: make(map[string]Watermark),
	}
}

func (s *MemoryStore) Revoke(ctx context.Context, rec Record) (Record, error) {
	if err := rec.Validate(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ctx.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	rec.RevokedAt = rec.RevokedAt.UTC()
	rec.ExpiresAt = rec.ExpiresAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.TokenID]; ok {
		return Record{}, ErrAlreadyRevoked
	}
	s.records[rec.TokenID] = rec
	ids := s.bySubject[rec.SubjectID]
	if ids == nil {
		ids = make(map[string]struct{})
		s.bySubject[rec.SubjectID] = ids
	}
	ids[rec.TokenID] = struct{}{}
	return rec, nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	_, ok := s.records[tokenID]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) ListForSubject(ctx context.Context, subjectID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.bySubject[subjectID]))
	for id := range s.bySubject[subjectID] {
		out = append(out, s.records[id])
	}
	s.mu.RUnlock()

	SortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for id, rec := range s.records {
		if !rec.ExpiresAt.Before(now) {
			continue
		}
		delete(s.records, id)
		if ids := s.bySubject[rec.SubjectID]; ids != nil {
			delete(ids, id)
			if len(ids) == 0 {
				delete(s.bySubject, rec.SubjectID)
			}
		}
		removed++
	}
	for subject, wm := range s.watermarks {
		if wm.ExpiresAt.Before(now) {
			delete(s.watermarks, subject)
		}
	}
	return removed, nil
}

func (s *MemoryStore) AdvanceWatermark(ctx context.Context, wm Watermark) (Watermark, error) {
	if err := wm.Validate(); err != nil {
		return Watermark{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ctx.Err(); err != nil {
		return Watermark{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	wm = wm.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.watermarks[wm.SubjectID]; ok && !cur.ValidSince.Before(wm.ValidSince) {
		return cur, nil
	}
	s.watermarks[wm.SubjectID] = wm
	return wm, nil
}

func (s *MemoryStore) Watermark(ctx context.Context, subjectID string) (Watermark, bool, error) {
	if err := ctx.Err(); err != nil {
		return Watermark{}, false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s.mu.RLock()
	wm, ok := s.watermarks[subjectID]
	s.mu.RUnlock()
	return wm, ok, nil
}
