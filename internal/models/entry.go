package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds.
const (
	EntryEarning           = "earning"
	EntryPayout            = "payout"
	EntryPayoutReversal    = "payout_reversal"
	EntryPayoutFee         = "payout_fee"
	EntryEscrowLock        = "escrow_lock"
	EntryEscrowRelease     = "escrow_release"
	EntryEscrowRefund      = "escrow_refund"
	EntryLoanDisbursement  = "loan_disbursement"
	EntryLoanRepayment     = "loan_repayment"
	EntrySavingsAllocation = "savings_allocation"
	EntrySavingsWithdrawal = "savings_withdrawal"
)

// LedgerEntry is immutable once written. Amount is the signed change to the
// available balance and LockedDelta the signed change to the locked balance.
type LedgerEntry struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"accountId"`
	Kind            string     `json:"kind"`
	Amount          int64      `json:"amount"`
	LockedDelta     int64      `json:"lockedDelta"`
	BalanceAfter    int64      `json:"balanceAfter"`
	LockedAfter     int64      `json:"lockedAfter"`
	AccountVersion  int64      `json:"accountVersion"`
	RelatedEntityID *uuid.UUID `json:"relatedEntityId,omitempty"`
	IdempotencyKey  string     `json:"idempotencyKey,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// IdempotencyRecord remembers which entity a mutating request produced.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	EntityID  uuid.UUID `json:"entityId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EarningsSummary aggregates credited earnings over a window.
type EarningsSummary struct {
	Total      int64 `json:"total"`
	ActiveDays int   `json:"activeDays"`
}
