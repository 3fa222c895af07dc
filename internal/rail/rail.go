// Package rail is the boundary to the external bank/UPI payout gateway.
package rail

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUnavailable is a transient failure; the transfer may be retried.
	ErrUnavailable = errors.New("rail: external rail unavailable")
	// ErrRejected is a permanent refusal of the transfer.
	ErrRejected = errors.New("rail: transfer rejected")
)

// Receipt statuses.
const (
	StatusAccepted  = "accepted"
	StatusCompleted = "completed"
)

type Transfer struct {
	PayoutID  uuid.UUID
	AccountID uuid.UUID
	Amount    int64
	Type      string
	// IdempotencyKey lets the gateway drop duplicate submissions across retries.
	IdempotencyKey string
}

type Receipt struct {
	Reference string
	Status    string
}

type Client interface {
	Submit(ctx context.Context, t Transfer) (*Receipt, error)
}
