package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Loan statuses.
const (
	LoanStatusActive    = "active"
	LoanStatusRepaid    = "repaid"
	LoanStatusDefaulted = "defaulted"
)

type LoanAccount struct {
	ID                 uuid.UUID       `json:"id"`
	AccountID          uuid.UUID       `json:"accountId"`
	Principal          int64           `json:"principal"`
	Fee                int64           `json:"fee"`
	TotalRepayable     int64           `json:"totalRepayable"`
	AmountRepaid       int64           `json:"amountRepaid"`
	DailyRepaymentRate decimal.Decimal `json:"dailyRepaymentRate"`
	Status             string          `json:"status"`
	DueAt              time.Time       `json:"dueAt"`
	Version            int64           `json:"-"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Outstanding is what is still owed on the loan.
func (l *LoanAccount) Outstanding() int64 {
	return l.TotalRepayable - l.AmountRepaid
}
