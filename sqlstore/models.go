package sqlstore

import "time"

type revocationRow struct {
	ID        uint      `gorm:"primaryKey"`
	TokenID   string    `gorm:"uniqueIndex;size:64;not null"`
	SubjectID string    `gorm:"index;size:64;not null"`
	TokenType string    `gorm:"size:16;not null"`
	RevokedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Reason    string    `gorm:"size:100"`
}

func (revocationRow) TableName() string { return "token_revocations" }

type watermarkRow struct {
	ID         uint      `gorm:"primaryKey"`
	SubjectID  string    `gorm:"uniqueIndex;size:64;not null"`
	ValidSince time.Time `gorm:"precision:3;not null"`
	ExpiresAt  time.Time `gorm:"index;not null"`
	Reason     string    `gorm:"size:100"`
}

func (watermarkRow) TableName() string { return "subject_watermarks" }

type principalRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:255;not null"`
	Name         string `gorm:"size:100"`
	PasswordHash string `gorm:"size:255;not null"`
	IsAdmin      bool   `gorm:"not null"`
	IsActive     bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (principalRow) TableName() string { return "principals" }
