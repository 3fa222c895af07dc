package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

// CredentialRepo stores login identities for worker accounts.
type CredentialRepo struct {
	pool *pgxpool.Pool
}

func NewCredentialRepo(pool *pgxpool.Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Create inserts the account and its credential in one transaction. A taken
// email returns store.ErrUniqueViolation.
func (r *CredentialRepo) Create(ctx context.Context, a *models.Account, c *models.Credential) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := writeAccount(ctx, tx, store.Write[*models.Account]{Record: a, Insert: true}); err != nil {
		return translate(err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO account_credentials (account_id, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, c.AccountID, c.Email, c.PasswordHash, c.CreatedAt); err != nil {
		return translate(err)
	}
	return tx.Commit(ctx)
}

// GetByEmail returns store.ErrNotFound for an unknown email.
func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var c models.Credential
	err := r.pool.QueryRow(ctx, `
		SELECT account_id, email, password_hash, created_at FROM account_credentials WHERE email = $1
	`, email).Scan(&c.AccountID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}
