package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WalletOpener creates the empty wallet that belongs to a new account.
type WalletOpener interface {
	Open(ctx context.Context, accountID uuid.UUID, periodStart time.Time) error
}

// MemoryRepository is the in-process Repository used when no database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
	wallets WalletOpener
}

func NewMemoryRepository(wallets WalletOpener) *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
		wallets: wallets,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *User, periodStart time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[u.Email]; exists {
		return ErrEmailAlreadyExists
	}
	if r.wallets != nil {
		if err := r.wallets.Open(ctx, u.ID, periodStart); err != nil {
			return err
		}
	}

	stored := *u
	r.byID[u.ID] = &stored
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	out := *r.byID[id]
	return &out, nil
}
