package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const payoutColumns = `id, account_id, gross_amount, type, fee, loan_deduction, loan_id, net_amount, status,
	funds_moved, float_reserved, rail_reference, failure_reason, idempotency_key, scheduled_for,
	processing_since, version, created_at, updated_at`

func scanPayout(row rowScanner) (*models.PayoutRequest, error) {
	var p models.PayoutRequest
	var ref *string
	err := row.Scan(&p.ID, &p.AccountID, &p.GrossAmount, &p.Type, &p.Fee, &p.LoanDeduction, &p.LoanID, &p.NetAmount,
		&p.Status, &p.FundsMoved, &p.FloatReserved, &ref, &p.FailureReason, &p.IdempotencyKey, &p.ScheduledFor,
		&p.ProcessingSince, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.RailReference = derefString(ref)
	return &p, nil
}

func collectPayouts(rows pgx.Rows) ([]*models.PayoutRequest, error) {
	defer rows.Close()
	var list []*models.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func writePayout(ctx context.Context, tx pgx.Tx, w store.Write[*models.PayoutRequest]) error {
	p := w.Record
	if w.Insert {
		_, err := tx.Exec(ctx, `
			INSERT INTO payout_requests (`+payoutColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		`, p.ID, p.AccountID, p.GrossAmount, p.Type, p.Fee, p.LoanDeduction, p.LoanID, p.NetAmount, p.Status,
			p.FundsMoved, p.FloatReserved, nullString(p.RailReference), p.FailureReason, p.IdempotencyKey,
			p.ScheduledFor, p.ProcessingSince, p.Version, p.CreatedAt, p.UpdatedAt)
		return err
	}
	return conditional(ctx, tx, `
		UPDATE payout_requests
		SET status = $3, funds_moved = $4, float_reserved = $5, rail_reference = $6, failure_reason = $7,
			processing_since = $8, version = $9, updated_at = $10
		WHERE id = $1 AND version = $2
	`, p.ID, w.ExpectedVersion, p.Status, p.FundsMoved, p.FloatReserved, nullString(p.RailReference),
		p.FailureReason, p.ProcessingSince, p.Version, p.UpdatedAt)
}

func (s *Store) GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	return scanPayout(s.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
}

func (s *Store) GetPayoutByRailReference(ctx context.Context, ref string) (*models.PayoutRequest, error) {
	return scanPayout(s.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE rail_reference = $1`, ref))
}

func (s *Store) ListPayouts(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.PayoutRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM payout_requests
		WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2
	`, accountID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func (s *Store) ListPayoutsByStatus(ctx context.Context, status string, limit int) ([]*models.PayoutRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM payout_requests
		WHERE status = $1 ORDER BY created_at LIMIT $2
	`, status, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectPayouts(rows)
}

func (s *Store) PayoutGrossSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(gross_amount), 0) FROM payout_requests
		WHERE account_id = $1 AND created_at >= $2 AND status <> $3
	`, accountID, since, models.PayoutStatusFailed).Scan(&total)
	return total, err
}
