package models

import (
	"time"

	"github.com/google/uuid"
)

// PlatformAccountID is the system account that collects payout fees and loan repayments.
var PlatformAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Subscription tiers.
const (
	TierFree   = "free"
	TierGigPro = "gigpro"
)

type Account struct {
	ID                uuid.UUID `json:"id"`
	AvailableBalance  int64     `json:"availableBalance"`
	LockedBalance     int64     `json:"lockedBalance"`
	LifetimeEarned    int64     `json:"lifetimeEarned"`
	LifetimeWithdrawn int64     `json:"lifetimeWithdrawn"`
	SubscriptionTier  string    `json:"subscriptionTier"`
	IsSystemAccount   bool      `json:"isSystemAccount"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// IsSubscriber reports whether the account pays reduced payout fees.
func (a *Account) IsSubscriber() bool {
	return a.SubscriptionTier == TierGigPro
}

// Credential is the login identity attached to an account.
type Credential struct {
	AccountID    uuid.UUID `json:"accountId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
