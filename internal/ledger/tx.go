package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

// Posting is one balance movement on one account. Amount changes the
// available balance and Locked the locked balance; Earned and Withdrawn
// adjust the lifetime counters. A posting that moves no balance writes no
// entry but still bumps the account version.
type Posting struct {
	AccountID uuid.UUID
	Kind      string
	Amount    int64
	Locked    int64
	Earned    int64
	Withdrawn int64
	Related   uuid.UUID
}

type stagedAccount struct {
	acc      *models.Account
	expected int64
	insert   bool
}

// Tx is a single attempt of a unit of work. Reads go to the store, writes
// are staged and committed together by Service.Run.
type Tx struct {
	store    store.Store
	now      time.Time
	key      string
	accounts map[uuid.UUID]*stagedAccount
	order    []uuid.UUID
	entries  []*models.LedgerEntry
	payouts  []store.Write[*models.PayoutRequest]
	jobs     []store.Write[*models.EscrowJob]
	loans    []store.Write[*models.LoanAccount]
	goals    []store.Write[*models.SavingsGoal]
	result   uuid.UUID
	after    []func()
}

func newTx(s store.Store, now time.Time, key string) *Tx {
	return &Tx{store: s, now: now, key: key, accounts: make(map[uuid.UUID]*stagedAccount)}
}

// Now is the timestamp every row written by this attempt carries.
func (tx *Tx) Now() time.Time { return tx.now }

// Store exposes the backing store for reads inside the unit of work.
func (tx *Tx) Store() store.Store { return tx.store }

// SetResult records the entity id an idempotent replay should return.
func (tx *Tx) SetResult(id uuid.UUID) { tx.result = id }

// AfterCommit registers fn to run once the attempt has committed.
func (tx *Tx) AfterCommit(fn func()) { tx.after = append(tx.after, fn) }

func (tx *Tx) staged(ctx context.Context, id uuid.UUID) (*stagedAccount, error) {
	if sa, ok := tx.accounts[id]; ok {
		return sa, nil
	}
	acc, err := tx.store.GetAccount(ctx, id)
	if err != nil {
		return nil, NotFound(err, "account "+id.String())
	}
	sa := &stagedAccount{acc: acc, expected: acc.Version}
	acc.Version++
	acc.UpdatedAt = tx.now
	tx.accounts[id] = sa
	tx.order = append(tx.order, id)
	return sa, nil
}

// Account returns the account as this attempt currently sees it,
// including postings staged so far.
func (tx *Tx) Account(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if sa, ok := tx.accounts[id]; ok {
		c := *sa.acc
		c.Version = sa.expected
		return &c, nil
	}
	acc, err := tx.store.GetAccount(ctx, id)
	if err != nil {
		return nil, NotFound(err, "account "+id.String())
	}
	return acc, nil
}

// Touch bumps the account version without moving money, so concurrent
// units of work that read the same account conflict.
func (tx *Tx) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := tx.staged(ctx, id)
	return err
}

// CreateAccount stages a new account row.
func (tx *Tx) CreateAccount(a *models.Account) {
	a.Version = 1
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.accounts[a.ID] = &stagedAccount{acc: a, insert: true}
	tx.order = append(tx.order, a.ID)
}

// UpdateAccount stages non-balance changes (e.g. subscription tier) made to a
// copy previously returned by Account.
func (tx *Tx) UpdateAccount(ctx context.Context, a *models.Account) error {
	sa, err := tx.staged(ctx, a.ID)
	if err != nil {
		return err
	}
	sa.acc.SubscriptionTier = a.SubscriptionTier
	return nil
}

// Post applies p to the staged account and appends its entry. It fails with
// ErrInsufficientFunds when either balance would go negative.
func (tx *Tx) Post(ctx context.Context, p Posting) (*models.LedgerEntry, error) {
	sa, err := tx.staged(ctx, p.AccountID)
	if err != nil {
		return nil, err
	}
	acc := sa.acc
	available := acc.AvailableBalance + p.Amount
	locked := acc.LockedBalance + p.Locked
	if available < 0 {
		return nil, fmt.Errorf("%w: account %s has %d available, needs %d",
			ErrInsufficientFunds, acc.ID, acc.AvailableBalance, -p.Amount)
	}
	if locked < 0 {
		return nil, fmt.Errorf("%w: account %s has %d locked, needs %d",
			ErrInsufficientFunds, acc.ID, acc.LockedBalance, -p.Locked)
	}
	acc.AvailableBalance = available
	acc.LockedBalance = locked
	acc.LifetimeEarned += p.Earned
	acc.LifetimeWithdrawn += p.Withdrawn
	if acc.LifetimeWithdrawn < 0 {
		acc.LifetimeWithdrawn = 0
	}
	if p.Amount == 0 && p.Locked == 0 {
		return nil, nil
	}
	e := &models.LedgerEntry{
		ID:             uuid.New(),
		AccountID:      acc.ID,
		Kind:           p.Kind,
		Amount:         p.Amount,
		LockedDelta:    p.Locked,
		BalanceAfter:   available,
		LockedAfter:    locked,
		AccountVersion: acc.Version,
		IdempotencyKey: tx.key,
		CreatedAt:      tx.now,
	}
	if p.Related != uuid.Nil {
		related := p.Related
		e.RelatedEntityID = &related
	}
	tx.entries = append(tx.entries, e)
	return e, nil
}

// stage adds or replaces the write for a record. Versioned records start at
// version 1 on insert; an update expects the version the record was read at.
func stage[T any](writes []store.Write[T], rec T, id func(T) uuid.UUID, version func(T) *int64, insert bool) []store.Write[T] {
	for i := range writes {
		if id(writes[i].Record) == id(rec) {
			writes[i].Record = rec
			return writes
		}
	}
	v := version(rec)
	w := store.Write[T]{Record: rec, Insert: insert}
	if insert {
		*v = 1
	} else {
		w.ExpectedVersion = *v
		*v++
	}
	return append(writes, w)
}

func payoutID(p *models.PayoutRequest) uuid.UUID { return p.ID }
func payoutVer(p *models.PayoutRequest) *int64 { return &p.Version }
func jobID(j *models.EscrowJob) uuid.UUID { return j.ID }
func jobVer(j *models.EscrowJob) *int64 { return &j.Version }
func loanID(l *models.LoanAccount) uuid.UUID { return l.ID }
func loanVer(l *models.LoanAccount) *int64 { return &l.Version }
func goalID(g *models.SavingsGoal) uuid.UUID { return g.ID }
func goalVer(g *models.SavingsGoal) *int64 { return &g.Version }

func (tx *Tx) InsertPayout(p *models.PayoutRequest) {
	p.CreatedAt, p.UpdatedAt = tx.now, tx.now
	tx.payouts = stage(tx.payouts, p, payoutID, payoutVer, true)
}

func (tx *Tx) UpdatePayout(p *models.PayoutRequest) {
	p.UpdatedAt = tx.now
	tx.payouts = stage(tx.payouts, p, payoutID, payoutVer, false)
}

func (tx *Tx) InsertJob(j *models.EscrowJob) {
	j.CreatedAt, j.UpdatedAt = tx.now, tx.now
	tx.jobs = stage(tx.jobs, j, jobID, jobVer, true)
}

func (tx *Tx) UpdateJob(j *models.EscrowJob) {
	j.UpdatedAt = tx.now
	tx.jobs = stage(tx.jobs, j, jobID, jobVer, false)
}

func (tx *Tx) InsertLoan(l *models.LoanAccount) {
	l.CreatedAt, l.UpdatedAt = tx.now, tx.now
	tx.loans = stage(tx.loans, l, loanID, loanVer, true)
}

func (tx *Tx) UpdateLoan(l *models.LoanAccount) {
	l.UpdatedAt = tx.now
	tx.loans = stage(tx.loans, l, loanID, loanVer, false)
}

func (tx *Tx) InsertGoal(g *models.SavingsGoal) {
	g.CreatedAt, g.UpdatedAt = tx.now, tx.now
	tx.goals = stage(tx.goals, g, goalID, goalVer, true)
}

func (tx *Tx) UpdateGoal(g *models.SavingsGoal) {
	g.UpdatedAt = tx.now
	tx.goals = stage(tx.goals, g, goalID, goalVer, false)
}

func (tx *Tx) batch() *store.Batch {
	b := &store.Batch{
		Entries: tx.entries,
		Payouts: tx.payouts,
		Jobs:    tx.jobs,
		Loans:   tx.loans,
		Goals:   tx.goals,
	}
	for _, id := range tx.order {
		sa := tx.accounts[id]
		b.Accounts = append(b.Accounts, store.Write[*models.Account]{
			Record:          sa.acc,
			Insert:          sa.insert,
			ExpectedVersion: sa.expected,
		})
	}
	if tx.key != "" && !b.Empty() {
		b.Idempotency = &models.IdempotencyRecord{Key: tx.key, EntityID: tx.result, CreatedAt: tx.now}
	}
	return b
}
