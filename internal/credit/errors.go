package credit

import (
	"errors"
	"fmt"
)

var (
	ErrIneligibleForCredit   = errors.New("credit: ineligible for credit")
	ErrActiveLoanExists      = errors.New("credit: active loan exists")
	ErrOverpaymentNotAllowed = errors.New("credit: overpayment not allowed")
	ErrInvalidRepaymentRate  = errors.New("credit: invalid repayment rate")
)

// Ineligibility reasons.
const (
	ReasonScoreTooLow      = "score_below_minimum"
	ReasonMonthlyLimit     = "monthly_limit_reached"
	ReasonPreviousDefault  = "previous_default"
	ReasonActiveLoan       = "active_loan"
	ReasonAmountAboveLimit = "amount_above_limit"
)

// IneligibleError carries the eligibility assessment behind a refusal.
type IneligibleError struct {
	Eligibility Eligibility
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrIneligibleForCredit, e.Eligibility.Reason)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligibleForCredit }
