package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigwallet/backend/internal/models"
)

const entryColumns = `id, account_id, kind, amount, locked_delta, balance_after, locked_after,
	account_version, related_entity_id, idempotency_key, created_at`

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	var key *string
	err := row.Scan(&e.ID, &e.AccountID, &e.Kind, &e.Amount, &e.LockedDelta, &e.BalanceAfter, &e.LockedAfter,
		&e.AccountVersion, &e.RelatedEntityID, &key, &e.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	e.IdempotencyKey = derefString(key)
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*models.LedgerEntry, error) {
	defer rows.Close()
	var list []*models.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func insertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, e.AccountID, e.Kind, e.Amount, e.LockedDelta, e.BalanceAfter, e.LockedAfter,
		e.AccountVersion, e.RelatedEntityID, nullString(e.IdempotencyKey), e.CreatedAt)
	return err
}

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	return scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id))
}

// ListEntries returns the account's entries newest first.
func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE account_id = $1 ORDER BY created_at DESC, id LIMIT $2
	`, accountID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) ListEntriesByRelated(ctx context.Context, relatedID uuid.UUID) ([]*models.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+` FROM ledger_entries
		WHERE related_entity_id = $1 ORDER BY created_at, id
	`, relatedID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (s *Store) EarningsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (models.EarningsSummary, error) {
	var sum models.EarningsSummary
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0), COUNT(DISTINCT (created_at AT TIME ZONE 'UTC')::date)
		FROM ledger_entries
		WHERE account_id = $1 AND created_at >= $2 AND amount > 0 AND kind IN ($3, $4)
	`, accountID, since, models.EntryEarning, models.EntryEscrowRelease).Scan(&sum.Total, &sum.ActiveDays)
	return sum, err
}

func (s *Store) GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	var rec models.IdempotencyRecord
	err := s.pool.QueryRow(ctx, `
		SELECT key, entity_id, created_at FROM idempotency_keys WHERE key = $1
	`, key).Scan(&rec.Key, &rec.EntityID, &rec.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// limitOrAll maps a non-positive limit to no limit (LIMIT NULL).
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
