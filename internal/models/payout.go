package models

import (
	"time"

	"github.com/google/uuid"
)

// Payout types.
const (
	PayoutInstant   = "instant"
	PayoutSameDay   = "same_day"
	PayoutScheduled = "scheduled"
)

// Payout statuses.
const (
	PayoutStatusPending    = "pending"
	PayoutStatusQueued     = "queued"
	PayoutStatusProcessing = "processing"
	PayoutStatusCompleted  = "completed"
	PayoutStatusFailed     = "failed"
	PayoutStatusReversed   = "reversed"
)

type PayoutRequest struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"accountId"`
	GrossAmount     int64      `json:"grossAmount"`
	Type            string     `json:"type"`
	Fee             int64      `json:"fee"`
	LoanDeduction   int64      `json:"loanDeduction"`
	LoanID          *uuid.UUID `json:"loanId,omitempty"`
	NetAmount       int64      `json:"netAmount"`
	Status          string     `json:"status"`
	FundsMoved      bool       `json:"-"`
	FloatReserved   bool       `json:"-"`
	RailReference   string     `json:"railReference,omitempty"`
	FailureReason   string     `json:"failureReason,omitempty"`
	IdempotencyKey  string     `json:"-"`
	ScheduledFor    *time.Time `json:"scheduledFor,omitempty"`
	ProcessingSince *time.Time `json:"processingSince,omitempty"`
	Version         int64      `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Terminal reports whether no further transition except reversal is possible.
func (p *PayoutRequest) Terminal() bool {
	switch p.Status {
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusReversed:
		return true
	}
	return false
}
