package ledger

import (
	"errors"
	"fmt"

	"github.com/gigwallet/backend/internal/store"
)

var (
	ErrInsufficientFunds      = errors.New("ledger: insufficient funds")
	ErrDuplicateOperation     = errors.New("ledger: duplicate operation")
	ErrConcurrentModification = errors.New("ledger: concurrent modification")
	ErrInvalidStateTransition = errors.New("ledger: invalid state transition")
	ErrNotFound               = errors.New("ledger: not found")
	ErrInvalidAmount          = errors.New("ledger: invalid amount")
)

// IsRetryable reports whether the caller may simply try the operation again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// NotFound maps store.ErrNotFound to ErrNotFound naming what was missing.
// Other errors are returned unchanged.
func NotFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

// Transition builds an ErrInvalidStateTransition for the given entity.
func Transition(entity, from, to string) error {
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidStateTransition, entity, from, to)
}
