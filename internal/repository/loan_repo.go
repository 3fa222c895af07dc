package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const loanColumns = `id, account_id, principal, fee, total_repayable, amount_repaid,
	daily_repayment_rate::text, status, due_at, version, created_at, updated_at`

func scanLoan(row rowScanner) (*models.LoanAccount, error) {
	var l models.LoanAccount
	var rate string
	err := row.Scan(&l.ID, &l.AccountID, &l.Principal, &l.Fee, &l.TotalRepayable, &l.AmountRepaid,
		&rate, &l.Status, &l.DueAt, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if l.DailyRepaymentRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("loan %s repayment rate: %w", l.ID, err)
	}
	return &l, nil
}

func collectLoans(rows pgx.Rows) ([]*models.LoanAccount, error) {
	defer rows.Close()
	var list []*models.LoanAccount
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func writeLoan(ctx context.Context, tx pgx.Tx, w store.Write[*models.LoanAccount]) error {
	l := w.Record
	if w.Insert {
		_, err := tx.Exec(ctx, `
			INSERT INTO loan_accounts (id, account_id, principal, fee, total_repayable, amount_repaid,
				daily_repayment_rate, status, due_at, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12)
		`, l.ID, l.AccountID, l.Principal, l.Fee, l.TotalRepayable, l.AmountRepaid,
			l.DailyRepaymentRate.String(), l.Status, l.DueAt, l.Version, l.CreatedAt, l.UpdatedAt)
		return err
	}
	return conditional(ctx, tx, `
		UPDATE loan_accounts SET amount_repaid = $3, status = $4, version = $5, updated_at = $6
		WHERE id = $1 AND version = $2
	`, l.ID, w.ExpectedVersion, l.AmountRepaid, l.Status, l.Version, l.UpdatedAt)
}

func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error) {
	return scanLoan(s.pool.QueryRow(ctx, `SELECT `+loanColumns+` FROM loan_accounts WHERE id = $1`, id))
}

func (s *Store) ActiveLoan(ctx context.Context, accountID uuid.UUID) (*models.LoanAccount, error) {
	return scanLoan(s.pool.QueryRow(ctx, `
		SELECT `+loanColumns+` FROM loan_accounts WHERE account_id = $1 AND status = $2
	`, accountID, models.LoanStatusActive))
}

func (s *Store) ListLoans(ctx context.Context, accountID uuid.UUID) ([]*models.LoanAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+loanColumns+` FROM loan_accounts WHERE account_id = $1 ORDER BY created_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

func (s *Store) ListActiveLoansDueBefore(ctx context.Context, t time.Time, limit int) ([]*models.LoanAccount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+loanColumns+` FROM loan_accounts
		WHERE status = $1 AND due_at < $2 ORDER BY due_at LIMIT $3
	`, models.LoanStatusActive, t, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}
