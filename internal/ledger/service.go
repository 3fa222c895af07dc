// Package ledger is the only component that mutates balances. Every
// operation runs as a unit of work committed under optimistic concurrency:
// the commit succeeds only if no touched row changed since it was read,
// otherwise the whole operation is re-run against fresh state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const DefaultMaxRetries = 5

// Observer receives commit outcomes, e.g. for metrics.
type Observer interface {
	Committed()
	Conflicted()
	Exhausted()
}

type nopObserver struct{}

func (nopObserver) Committed()  {}
func (nopObserver) Conflicted() {}
func (nopObserver) Exhausted()  {}

// TxFunc stages one attempt of a unit of work. It must be safe to call again
// after a conflict; side effects outside the ledger belong in Tx.AfterCommit.
type TxFunc func(ctx context.Context, tx *Tx) error

type Service struct {
	store      store.Store
	log        *slog.Logger
	obs        Observer
	maxRetries int
	backoff    time.Duration
	now        func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

func WithObserver(o Observer) Option { return func(s *Service) { s.obs = o } }

// WithMaxRetries bounds the attempts made on version conflicts.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		log:        slog.Default(),
		obs:        nopObserver{},
		maxRetries: DefaultMaxRetries,
		backoff:    2 * time.Millisecond,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Store() store.Store { return s.store }

func (s *Service) Now() time.Time { return s.now().UTC() }

// Run executes fn as one atomic unit of work. A non-empty key is committed
// with the work; if the key was already committed, Run returns the entity id
// recorded with it and an error wrapping ErrDuplicateOperation.
func (s *Service) Run(ctx context.Context, key string, fn TxFunc) (uuid.UUID, error) {
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if key != "" {
			rec, err := s.store.GetIdempotency(ctx, key)
			if err == nil {
				return rec.EntityID, fmt.Errorf("%w: %s", ErrDuplicateOperation, key)
			}
			if !errors.Is(err, store.ErrNotFound) {
				return uuid.Nil, err
			}
		}
		tx := newTx(s.store, s.Now(), key)
		if err := fn(ctx, tx); err != nil {
			return uuid.Nil, err
		}
		b := tx.batch()
		if b.Empty() {
			return tx.result, nil
		}
		err := s.store.Commit(ctx, b)
		switch {
		case err == nil:
			s.obs.Committed()
			for _, fn := range tx.after {
				fn()
			}
			return tx.result, nil
		case errors.Is(err, store.ErrVersionConflict):
			s.obs.Conflicted()
			s.log.Debug("ledger version conflict", "attempt", attempt, "key", key)
			if err := s.wait(ctx, attempt); err != nil {
				return uuid.Nil, err
			}
		case errors.Is(err, store.ErrDuplicateKey):
			// A concurrent request committed the same key; the next pass returns its result.
		default:
			return uuid.Nil, err
		}
	}
	s.obs.Exhausted()
	s.log.Warn("ledger retries exhausted", "attempts", s.maxRetries, "key", key)
	return uuid.Nil, ErrConcurrentModification
}

func (s *Service) wait(ctx context.Context, attempt int) error {
	d := s.backoff*time.Duration(attempt) + rand.N(s.backoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EntryResult is what ApplyEntry reports, fresh or replayed.
type EntryResult struct {
	EntryID    uuid.UUID `json:"entryId"`
	NewBalance int64     `json:"newBalance"`
}

// PostingFor maps a signed single-account amount to its balance movement.
// Lock kinds move money between the available and locked balances.
func PostingFor(accountID uuid.UUID, kind string, amount int64, related uuid.UUID) (Posting, error) {
	if amount == 0 {
		return Posting{}, fmt.Errorf("%w: zero amount", ErrInvalidAmount)
	}
	p := Posting{AccountID: accountID, Kind: kind, Amount: amount, Related: related}
	switch kind {
	case models.EntryEarning:
		if amount < 0 {
			return Posting{}, fmt.Errorf("%w: earnings must be positive", ErrInvalidAmount)
		}
		p.Earned = amount
	case models.EntryEscrowLock:
		if amount > 0 {
			return Posting{}, fmt.Errorf("%w: escrow lock must be negative", ErrInvalidAmount)
		}
		p.Locked = -amount
	case models.EntryEscrowRefund:
		if amount < 0 {
			return Posting{}, fmt.Errorf("%w: escrow refund must be positive", ErrInvalidAmount)
		}
		p.Locked = -amount
	case models.EntryEscrowRelease:
		if amount < 0 {
			// Debit side: the poster's lock is consumed.
			p.Amount, p.Locked = 0, amount
		} else {
			p.Earned = amount
		}
	case models.EntryPayout, models.EntryPayoutReversal, models.EntryPayoutFee,
		models.EntryLoanDisbursement, models.EntryLoanRepayment,
		models.EntrySavingsAllocation, models.EntrySavingsWithdrawal:
	default:
		return Posting{}, fmt.Errorf("%w: unknown entry kind %q", ErrInvalidAmount, kind)
	}
	return p, nil
}

// ApplyEntry posts a single entry. Replaying the key returns the first
// entry's result together with ErrDuplicateOperation.
func (s *Service) ApplyEntry(ctx context.Context, accountID uuid.UUID, kind string, amount int64, related uuid.UUID, key string) (EntryResult, error) {
	p, err := PostingFor(accountID, kind, amount, related)
	if err != nil {
		return EntryResult{}, err
	}
	var res EntryResult
	id, err := s.Run(ctx, key, func(ctx context.Context, tx *Tx) error {
		e, err := tx.Post(ctx, p)
		if err != nil {
			return err
		}
		tx.SetResult(e.ID)
		res = EntryResult{EntryID: e.ID, NewBalance: e.BalanceAfter}
		return nil
	})
	if errors.Is(err, ErrDuplicateOperation) {
		prior, lookupErr := s.store.GetEntry(ctx, id)
		if lookupErr != nil {
			return EntryResult{}, NotFound(lookupErr, "entry "+id.String())
		}
		return EntryResult{EntryID: prior.ID, NewBalance: prior.BalanceAfter}, err
	}
	if err != nil {
		return EntryResult{}, err
	}
	return res, nil
}

// OpenAccount creates an empty account. A nil id generates one.
func (s *Service) OpenAccount(ctx context.Context, id uuid.UUID, tier string, system bool) (*models.Account, error) {
	if id == uuid.Nil {
		id = uuid.New()
	}
	if tier == "" {
		tier = models.TierFree
	}
	acc := &models.Account{ID: id, SubscriptionTier: tier, IsSystemAccount: system}
	_, err := s.Run(ctx, "", func(ctx context.Context, tx *Tx) error {
		tx.CreateAccount(acc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// EnsurePlatformAccount creates the platform account on first start.
func (s *Service) EnsurePlatformAccount(ctx context.Context) error {
	_, err := s.store.GetAccount(ctx, models.PlatformAccountID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err = s.OpenAccount(ctx, models.PlatformAccountID, models.TierFree, true)
	if errors.Is(err, store.ErrUniqueViolation) {
		return nil
	}
	return err
}

// SetTier changes the account's subscription tier.
func (s *Service) SetTier(ctx context.Context, accountID uuid.UUID, tier string) (*models.Account, error) {
	if tier != models.TierFree && tier != models.TierGigPro {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidAmount, tier)
	}
	_, err := s.Run(ctx, "", func(ctx context.Context, tx *Tx) error {
		acc, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		acc.SubscriptionTier = tier
		return tx.UpdateAccount(ctx, acc)
	})
	if err != nil {
		return nil, err
	}
	return s.Balance(ctx, accountID)
}

func (s *Service) Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, NotFound(err, "account "+accountID.String())
	}
	return acc, nil
}

// History lists the account's entries newest first.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	return s.store.ListEntries(ctx, accountID, limit)
}

// EarningsWindow is the trailing window affordability is measured over.
const EarningsWindow = 30 * 24 * time.Hour

// Earnings summarises credited earnings over the trailing window.
func (s *Service) Earnings(ctx context.Context, accountID uuid.UUID) (models.EarningsSummary, error) {
	return s.store.EarningsSince(ctx, accountID, s.Now().Add(-EarningsWindow))
}

// AverageDailyEarnings divides credited earnings in the trailing window by the
// number of days that had any, rounding half up.
func (s *Service) AverageDailyEarnings(ctx context.Context, accountID uuid.UUID) (int64, error) {
	sum, err := s.Earnings(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return AverageDaily(sum), nil
}

// AverageDaily is sum.Total over sum.ActiveDays, 0 for no active days.
func AverageDaily(sum models.EarningsSummary) int64 {
	if sum.ActiveDays == 0 {
		return 0
	}
	return decimal.NewFromInt(sum.Total).
		Div(decimal.NewFromInt(int64(sum.ActiveDays))).
		Round(0).IntPart()
}
