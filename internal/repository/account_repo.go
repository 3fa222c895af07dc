package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const accountColumns = `id, available_balance, locked_balance, lifetime_earned, lifetime_withdrawn,
	subscription_tier, is_system_account, version, created_at, updated_at`

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.AvailableBalance, &a.LockedBalance, &a.LifetimeEarned, &a.LifetimeWithdrawn,
		&a.SubscriptionTier, &a.IsSystemAccount, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func writeAccount(ctx context.Context, tx pgx.Tx, w store.Write[*models.Account]) error {
	a := w.Record
	if w.Insert {
		_, err := tx.Exec(ctx, `
			INSERT INTO accounts (`+accountColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, a.ID, a.AvailableBalance, a.LockedBalance, a.LifetimeEarned, a.LifetimeWithdrawn,
			a.SubscriptionTier, a.IsSystemAccount, a.Version, a.CreatedAt, a.UpdatedAt)
		return err
	}
	return conditional(ctx, tx, `
		UPDATE accounts
		SET available_balance = $3, locked_balance = $4, lifetime_earned = $5, lifetime_withdrawn = $6,
			subscription_tier = $7, version = $8, updated_at = $9
		WHERE id = $1 AND version = $2
	`, a.ID, w.ExpectedVersion, a.AvailableBalance, a.LockedBalance, a.LifetimeEarned, a.LifetimeWithdrawn,
		a.SubscriptionTier, a.Version, a.UpdatedAt)
}
