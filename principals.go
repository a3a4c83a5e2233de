package goToken

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrPrincipalNotFound is returned by [MemoryPrincipalRepository] updates for
// an unknown id.
var ErrPrincipalNotFound = errors.New("principal not found")

// MemoryPrincipalRepository is a process-local [PrincipalRepository] for
// tests, examples and single-node tools. Emails are matched case-insensitively.
type MemoryPrincipalRepository struct {
	mu      sync.RWMutex
	byID    map[string]Principal
	byEmail map[string]string
}

func NewMemoryPrincipalRepository() *MemoryPrincipalRepository {
	return &MemoryPrincipalRepository{
		byID:    make(map[string]Principal),
		byEmail: make(map[string]string),
	}
}

func (r *MemoryPrincipalRepository) FindByID(_ context.Context, id string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *MemoryPrincipalRepository) FindByEmail(_ context.Context, email string) (*Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	p := r.byID[id]
	return &p, nil
}

func (r *MemoryPrincipalRepository) Create(_ context.Context, p Principal) (Principal, error) {
	key := strings.ToLower(strings.TrimSpace(p.Email))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[key]; taken {
		return Principal{}, ErrPrincipalExists
	}
	if _, taken := r.byID[p.ID]; taken {
		return Principal{}, ErrPrincipalExists
	}
	r.byID[p.ID] = p
	r.byEmail[key] = p.ID
	return p, nil
}

func (r *MemoryPrincipalRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.PasswordHash = hash
	r.byID[id] = p
	return nil
}

// SetActive enables or disables a principal. Disabled principals cannot log
// in or refresh.
func (r *MemoryPrincipalRepository) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return ErrPrincipalNotFound
	}
	p.IsActive = active
	r.byID[id] = p
	return nil
}
