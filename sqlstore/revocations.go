package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MrEthical07/goToken/revocation"
)

// RevocationStore implements revocation.Store on top of gorm.
type RevocationStore struct {
	db *gorm.DB
}

// NewRevocationStore wraps db. Tables must exist; see AutoMigrate.
func NewRevocationStore(db *gorm.DB) *RevocationStore {
	return &RevocationStore{db: db}
}

func (s *RevocationStore) Revoke(ctx context.Context, rec revocation.Record) (revocation.Record, error) {
	if err := rec.Validate(); err != nil {
		return revocation.Record{}, fmt.Errorf("%w: %v", revocation.ErrInvalidRecord, err)
	}
	row := revocationRow{
		TokenID:   rec.TokenID,
		SubjectID: rec.SubjectID,
		TokenType: rec.TokenType,
		RevokedAt: rec.RevokedAt.UTC(),
		ExpiresAt: rec.ExpiresAt.UTC(),
		Reason:    rec.Reason,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_id"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return revocation.Record{}, revocation.ErrAlreadyRevoked
		}
		return revocation.Record{}, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		return revocation.Record{}, revocation.ErrAlreadyRevoked
	}
	return row.record(), nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&revocationRow{}).
		Where("token_id = ?", tokenID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	return count > 0, nil
}

func (s *RevocationStore) ListForSubject(ctx context.Context, subjectID string) ([]revocation.Record, error) {
	var rows []revocationRow
	err := s.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("revoked_at DESC").
		Order("token_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}

	out := make([]revocation.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.record())
	}
	return out, nil
}

func (s *RevocationStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("expires_at < ?", now.UTC()).Delete(&revocationRow{})
		if result.Error != nil {
			return result.Error
		}
		removed = result.RowsAffected
		return tx.Where("expires_at < ?", now.UTC()).Delete(&watermarkRow{}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	return removed, nil
}

func (s *RevocationStore) AdvanceWatermark(ctx context.Context, wm revocation.Watermark) (revocation.Watermark, error) {
	if err := wm.Validate(); err != nil {
		return revocation.Watermark{}, fmt.Errorf("%w: %v", revocation.ErrInvalidRecord, err)
	}
	wm = wm.Normalize()

	var current watermarkRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := watermarkRow{
			SubjectID:  wm.SubjectID,
			ValidSince: wm.ValidSince,
			ExpiresAt:  wm.ExpiresAt,
			Reason:     wm.Reason,
		}
		created := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "subject_id"}}, DoNothing: true}).Create(&row)
		if created.Error != nil && !errors.Is(created.Error, gorm.ErrDuplicatedKey) {
			return created.Error
		}
		if created.Error != nil || created.RowsAffected == 0 {
			err := tx.Model(&watermarkRow{}).
				Where("subject_id = ? AND valid_since < ?", wm.SubjectID, wm.ValidSince).
				Updates(map[string]interface{}{
					"valid_since": wm.ValidSince,
					"expires_at":  wm.ExpiresAt,
					"reason":      wm.Reason,
				}).Error
			if err != nil {
				return err
			}
		}
		return tx.Where("subject_id = ?", wm.SubjectID).First(&current).Error
	})
	if err != nil {
		return revocation.Watermark{}, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	return current.watermark(), nil
}

func (s *RevocationStore) Watermark(ctx context.Context, subjectID string) (revocation.Watermark, bool, error) {
	var row watermarkRow
	err := s.db.WithContext(ctx).Where("subject_id = ?", subjectID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return revocation.Watermark{}, false, nil
		}
		return revocation.Watermark{}, false, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	return row.watermark(), true, nil
}

// Ping reports round-trip latency to the database.
func (s *RevocationStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	sqlDB, err := s.db.DB()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", revocation.ErrStorageUnavailable, err)
	}
	return time.Since(start), nil
}

func (r revocationRow) record() revocation.Record {
	return revocation.Record{
		TokenID:   r.TokenID,
		SubjectID: r.SubjectID,
		TokenType: r.TokenType,
		RevokedAt: r.RevokedAt.UTC(),
		ExpiresAt: r.ExpiresAt.UTC(),
		Reason:    r.Reason,
	}
}

func (r watermarkRow) watermark() revocation.Watermark {
	return revocation.Watermark{
		SubjectID:  r.SubjectID,
		ValidSince: r.ValidSince.UTC(),
		ExpiresAt:  r.ExpiresAt.UTC(),
		Reason:     r.Reason,
	}
}
