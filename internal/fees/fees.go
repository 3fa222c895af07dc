// Package fees computes payout fees. It holds no state.
package fees

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/models"
)

var ErrUnknownType = errors.New("fees: unknown payout type")

type rates struct {
	standard   decimal.Decimal
	subscriber decimal.Decimal
}

var table = map[string]rates{
	models.PayoutInstant:   {decimal.RequireFromString("0.015"), decimal.RequireFromString("0.012")},
	models.PayoutSameDay:   {decimal.RequireFromString("0.010"), decimal.RequireFromString("0.008")},
	models.PayoutScheduled: {decimal.Zero, decimal.Zero},
}

type Quote struct {
	Fee       int64 `json:"fee"`
	NetAmount int64 `json:"netAmount"`
}

// Rate returns the fee rate for the payout type and tier.
func Rate(payoutType string, isSubscriber bool) (decimal.Decimal, error) {
	r, ok := table[payoutType]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownType, payoutType)
	}
	if isSubscriber {
		return r.subscriber, nil
	}
	return r.standard, nil
}

// Compute returns round(amount × rate) with halves rounded up, and the
// remaining net amount.
func Compute(amount int64, payoutType string, isSubscriber bool) (Quote, error) {
	rate, err := Rate(payoutType, isSubscriber)
	if err != nil {
		return Quote{}, err
	}
	fee := Percent(amount, rate)
	return Quote{Fee: fee, NetAmount: amount - fee}, nil
}

// Percent is round(amount × fraction) with halves rounded up. Minor-unit
// amounts are non-negative, so rounding away from zero is rounding up.
func Percent(amount int64, fraction decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(fraction).Round(0).IntPart()
}

// ValidType reports whether t names a payout type.
func ValidType(t string) bool {
	_, ok := table[t]
	return ok
}
