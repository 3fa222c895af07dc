// Package store defines the persistence contract shared by the Postgres and
// in-memory backends. All mutation goes through Commit, which applies a Batch
// atomically and only if every touched row still has the version it was read at.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/models"
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict means a row changed after it was read; the batch was not applied.
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrDuplicateKey means the batch's idempotency key was already committed.
	ErrDuplicateKey = errors.New("store: duplicate idempotency key")
	// ErrUniqueViolation is returned when an insert collides with an existing row.
	ErrUniqueViolation = errors.New("store: unique violation")
)

// Write stages one row. Insert rows must not exist yet; updates are
// conditional on ExpectedVersion and the stored row gets Record's version.
type Write[T any] struct {
	Record          T
	Insert          bool
	ExpectedVersion int64
}

// Batch is everything one unit of work commits.
type Batch struct {
	Idempotency *models.IdempotencyRecord
	Accounts    []Write[*models.Account]
	Entries     []*models.LedgerEntry
	Payouts     []Write[*models.PayoutRequest]
	Jobs        []Write[*models.EscrowJob]
	Loans       []Write[*models.LoanAccount]
	Goals       []Write[*models.SavingsGoal]
}

// Empty reports whether committing b would change nothing.
func (b *Batch) Empty() bool {
	return b.Idempotency == nil && len(b.Accounts) == 0 && len(b.Entries) == 0 &&
		len(b.Payouts) == 0 && len(b.Jobs) == 0 && len(b.Loans) == 0 && len(b.Goals) == 0
}

type AccountReader interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

type EntryReader interface {
	GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
	ListEntriesByRelated(ctx context.Context, relatedID uuid.UUID) ([]*models.LedgerEntry, error)
	// EarningsSince sums positive earning and escrow_release credits since the given time.
	EarningsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (models.EarningsSummary, error)
	GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error)
}

type PayoutReader interface {
	GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	GetPayoutByRailReference(ctx context.Context, ref string) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.PayoutRequest, error)
	// ListPayoutsByStatus returns payouts in the status, oldest first.
	ListPayoutsByStatus(ctx context.Context, status string, limit int) ([]*models.PayoutRequest, error)
	// PayoutGrossSince sums gross amounts of non-failed payouts created since the given time.
	PayoutGrossSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error)
}

type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.EscrowJob, error)
	ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.EscrowJob, error)
	ListJobsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.EscrowJob, error)
}

type LoanReader interface {
	GetLoan(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error)
	// ActiveLoan returns ErrNotFound when the account has no active loan.
	ActiveLoan(ctx context.Context, accountID uuid.UUID) (*models.LoanAccount, error)
	ListLoans(ctx context.Context, accountID uuid.UUID) ([]*models.LoanAccount, error)
	// ListActiveLoansDueBefore returns active loans whose due date has passed.
	ListActiveLoansDueBefore(ctx context.Context, t time.Time, limit int) ([]*models.LoanAccount, error)
}

type GoalReader interface {
	GetGoal(ctx context.Context, id uuid.UUID) (*models.SavingsGoal, error)
	// ListGoals returns the account's goals in creation order.
	ListGoals(ctx context.Context, accountID uuid.UUID) ([]*models.SavingsGoal, error)
}

// Store is the unified storage interface.
type Store interface {
	AccountReader
	EntryReader
	PayoutReader
	JobReader
	LoanReader
	GoalReader

	// Commit applies b atomically. It returns ErrVersionConflict if any
	// conditional write lost a race and ErrDuplicateKey if b's idempotency
	// key already exists. Nothing is applied when an error is returned.
	Commit(ctx context.Context, b *Batch) error
}
