package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	goToken "github.com/MrEthical07/goToken"
)

// ErrPrincipalNotFound is returned by updates that match no row.
var ErrPrincipalNotFound = goToken.ErrPrincipalNotFound

// PrincipalRepository implements goToken.PrincipalRepository with gorm.
// Emails are stored lower-cased.
type PrincipalRepository struct {
	db *gorm.DB
}

func NewPrincipalRepository(db *gorm.DB) *PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) FindByID(ctx context.Context, id string) (*goToken.Principal, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*goToken.Principal, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *PrincipalRepository) first(ctx context.Context, query string, arg string) (*goToken.Principal, error) {
	var row principalRow
	err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p := row.principal()
	return &p, nil
}

// Create inserts p. A taken email returns goToken.ErrPrincipalExists.
func (r *PrincipalRepository) Create(ctx context.Context, p goToken.Principal) (goToken.Principal, error) {
	row := principalRow{
		ID:           p.ID,
		Email:        strings.ToLower(strings.TrimSpace(p.Email)),
		Name:         p.Name,
		PasswordHash: p.PasswordHash,
		IsAdmin:      p.IsAdmin,
		IsActive:     p.IsActive,
		CreatedAt:    p.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return goToken.Principal{}, goToken.ErrPrincipalExists
		}
		return goToken.Principal{}, fmt.Errorf("create principal: %w", err)
	}
	return row.principal(), nil
}

func (r *PrincipalRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return r.update(ctx, id, "password_hash", hash)
}

// SetActive enables or disables a principal. Disabled principals cannot log
// in or refresh.
func (r *PrincipalRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.update(ctx, id, "is_active", active)
}

func (r *PrincipalRepository) update(ctx context.Context, id, column string, value interface{}) error {
	result := r.db.WithContext(ctx).Model(&principalRow{}).Where("id = ?", id).Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r principalRow) principal() goToken.Principal {
	return goToken.Principal{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}
