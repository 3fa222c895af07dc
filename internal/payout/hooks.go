package payout

import (
	"context"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
)

// Completion accumulates what completion hooks took out of one payout.
type Completion struct {
	LoanRepaid int64
	Saved      int64
}

// CompletionHook runs inside the unit of work that marks a payout completed.
// Hooks run in registration order and see the earlier hooks' results in c.
type CompletionHook interface {
	OnPayoutCompleted(ctx context.Context, tx *ledger.Tx, p *models.PayoutRequest, c *Completion) error
}

// Deduction is a loan repayment withheld from a payout's gross amount.
type Deduction struct {
	LoanID uuid.UUID
	Amount int64
}

type LoanPlanner interface {
	PlanDeduction(ctx context.Context, accountID uuid.UUID, gross int64) (Deduction, error)
}

// Dispatcher hands processing payouts to the rail worker.
type Dispatcher interface {
	EnqueueDispatch(ctx context.Context, payoutID uuid.UUID) error
}
