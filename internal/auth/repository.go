package auth

import (
	"context"
	"sync"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

// Repository persists an account together with its login credential.
// Create returns store.ErrUniqueViolation for a taken email and GetByEmail
// returns store.ErrNotFound for an unknown one.
type Repository interface {
	Create(ctx context.Context, a *models.Account, c *models.Credential) error
	GetByEmail(ctx context.Context, email string) (*models.Credential, error)
}

// MemoryRepository keeps credentials in process and opens accounts through
// the ledger. It backs tests and databaseless development runs.
type MemoryRepository struct {
	mu      sync.Mutex
	ledger  *ledger.Service
	byEmail map[string]*models.Credential
}

func NewMemoryRepository(l *ledger.Service) *MemoryRepository {
	return &MemoryRepository{ledger: l, byEmail: make(map[string]*models.Credential)}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Create(ctx context.Context, a *models.Account, c *models.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[c.Email]; ok {
		return store.ErrUniqueViolation
	}
	if _, err := r.ledger.OpenAccount(ctx, a.ID, a.SubscriptionTier, false); err != nil {
		return err
	}
	cp := *c
	r.byEmail[c.Email] = &cp
	return nil
}

func (r *MemoryRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byEmail[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}
