// Package repository is the Postgres implementation of store.Store on pgx/v5.
package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigwallet/backend/internal/store"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

// Migrate creates the ledger tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Commit applies the batch in a single transaction.
func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if rec := b.Idempotency; rec != nil {
		tag, err := tx.Exec(ctx, `
			INSERT INTO idempotency_keys (key, entity_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (key) DO NOTHING
		`, rec.Key, rec.EntityID, rec.CreatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return store.ErrDuplicateKey
		}
	}
	for _, w := range b.Accounts {
		if err := writeAccount(ctx, tx, w); err != nil {
			return translate(err)
		}
	}
	for _, w := range b.Payouts {
		if err := writePayout(ctx, tx, w); err != nil {
			return translate(err)
		}
	}
	for _, w := range b.Jobs {
		if err := writeJob(ctx, tx, w); err != nil {
			return translate(err)
		}
	}
	for _, w := range b.Loans {
		if err := writeLoan(ctx, tx, w); err != nil {
			return translate(err)
		}
	}
	for _, w := range b.Goals {
		if err := writeGoal(ctx, tx, w); err != nil {
			return translate(err)
		}
	}
	for _, e := range b.Entries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return translate(err)
		}
	}
	return tx.Commit(ctx)
}

// conditional runs an UPDATE guarded by a version predicate.
func conditional(ctx context.Context, tx pgx.Tx, sql string, args ...any) error {
	tag, err := tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrVersionConflict
	}
	return nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrUniqueViolation
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
