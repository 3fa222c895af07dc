// Package memory is an in-process implementation of store.Store. Commit
// serialises writers behind one mutex and enforces the same version and
// uniqueness rules as the Postgres schema.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

type table[T any] struct {
	rows  map[uuid.UUID]T
	order []uuid.UUID
	id    func(T) uuid.UUID
	ver   func(T) int64
	clone func(T) T
}

func newTable[T any](id func(T) uuid.UUID, ver func(T) int64, clone func(T) T) *table[T] {
	return &table[T]{rows: make(map[uuid.UUID]T), id: id, ver: ver, clone: clone}
}

func (t *table[T]) get(id uuid.UUID) (T, error) {
	row, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, store.ErrNotFound
	}
	return t.clone(row), nil
}

func (t *table[T]) check(w store.Write[T]) error {
	cur, exists := t.rows[t.id(w.Record)]
	if w.Insert {
		if exists {
			return store.ErrUniqueViolation
		}
		return nil
	}
	if !exists || t.ver(cur) != w.ExpectedVersion {
		return store.ErrVersionConflict
	}
	return nil
}

func (t *table[T]) put(w store.Write[T]) {
	id := t.id(w.Record)
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(w.Record)
}

// each visits rows in insertion order.
func (t *table[T]) each(fn func(T)) {
	for _, id := range t.order {
		fn(t.rows[id])
	}
}

type Store struct {
	mu       sync.RWMutex
	accounts *table[*models.Account]
	payouts  *table[*models.PayoutRequest]
	jobs     *table[*models.EscrowJob]
	loans    *table[*models.LoanAccount]
	goals    *table[*models.SavingsGoal]
	entries  []*models.LedgerEntry
	entryIDs map[uuid.UUID]int
	idem     map[string]*models.IdempotencyRecord
}

func New() *Store {
	return &Store{
		accounts: newTable(
			func(a *models.Account) uuid.UUID { return a.ID },
			func(a *models.Account) int64 { return a.Version },
			func(a *models.Account) *models.Account { c := *a; return &c },
		),
		payouts: newTable(
			func(p *models.PayoutRequest) uuid.UUID { return p.ID },
			func(p *models.PayoutRequest) int64 { return p.Version },
			func(p *models.PayoutRequest) *models.PayoutRequest { c := *p; return &c },
		),
		jobs: newTable(
			func(j *models.EscrowJob) uuid.UUID { return j.ID },
			func(j *models.EscrowJob) int64 { return j.Version },
			func(j *models.EscrowJob) *models.EscrowJob { c := *j; return &c },
		),
		loans: newTable(
			func(l *models.LoanAccount) uuid.UUID { return l.ID },
			func(l *models.LoanAccount) int64 { return l.Version },
			func(l *models.LoanAccount) *models.LoanAccount { c := *l; return &c },
		),
		goals: newTable(
			func(g *models.SavingsGoal) uuid.UUID { return g.ID },
			func(g *models.SavingsGoal) int64 { return g.Version },
			func(g *models.SavingsGoal) *models.SavingsGoal { c := *g; return &c },
		),
		entryIDs: make(map[uuid.UUID]int),
		idem:     make(map[string]*models.IdempotencyRecord),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Commit(ctx context.Context, b *store.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Idempotency != nil {
		if _, ok := s.idem[b.Idempotency.Key]; ok {
			return store.ErrDuplicateKey
		}
	}
	for _, w := range b.Accounts {
		if err := s.accounts.check(w); err != nil {
			return err
		}
	}
	for _, w := range b.Payouts {
		if err := s.payouts.check(w); err != nil {
			return err
		}
	}
	for _, w := range b.Jobs {
		if err := s.jobs.check(w); err != nil {
			return err
		}
	}
	for _, w := range b.Loans {
		if err := s.loans.check(w); err != nil {
			return err
		}
		if err := s.checkSingleActiveLoan(w.Record); err != nil {
			return err
		}
	}
	for _, w := range b.Goals {
		if err := s.goals.check(w); err != nil {
			return err
		}
	}
	for _, e := range b.Entries {
		if _, ok := s.entryIDs[e.ID]; ok {
			return store.ErrUniqueViolation
		}
	}

	if b.Idempotency != nil {
		rec := *b.Idempotency
		s.idem[rec.Key] = &rec
	}
	for _, w := range b.Accounts {
		s.accounts.put(w)
	}
	for _, w := range b.Payouts {
		s.payouts.put(w)
	}
	for _, w := range b.Jobs {
		s.jobs.put(w)
	}
	for _, w := range b.Loans {
		s.loans.put(w)
	}
	for _, w := range b.Goals {
		s.goals.put(w)
	}
	for _, e := range b.Entries {
		c := *e
		s.entryIDs[c.ID] = len(s.entries)
		s.entries = append(s.entries, &c)
	}
	return nil
}

// checkSingleActiveLoan mirrors the partial unique index on active loans.
func (s *Store) checkSingleActiveLoan(l *models.LoanAccount) error {
	if l.Status != models.LoanStatusActive {
		return nil
	}
	for _, cur := range s.loans.rows {
		if cur.ID != l.ID && cur.AccountID == l.AccountID && cur.Status == models.LoanStatusActive {
			return store.ErrUniqueViolation
		}
	}
	return nil
}

// ---- accounts ----

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts.get(id)
}

// ---- entries ----

func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.entryIDs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *s.entries[i]
	return &c, nil
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LedgerEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if e := s.entries[i]; e.AccountID == accountID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) ListEntriesByRelated(ctx context.Context, relatedID uuid.UUID) ([]*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LedgerEntry
	for _, e := range s.entries {
		if e.RelatedEntityID != nil && *e.RelatedEntityID == relatedID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Store) EarningsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (models.EarningsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum models.EarningsSummary
	days := make(map[string]struct{})
	for _, e := range s.entries {
		if e.AccountID != accountID || e.Amount <= 0 || e.CreatedAt.Before(since) {
			continue
		}
		if e.Kind != models.EntryEarning && e.Kind != models.EntryEscrowRelease {
			continue
		}
		sum.Total += e.Amount
		days[e.CreatedAt.UTC().Format(time.DateOnly)] = struct{}{}
	}
	sum.ActiveDays = len(days)
	return sum, nil
}

func (s *Store) GetIdempotency(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.idem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *rec
	return &c, nil
}

// ---- payouts ----

func (s *Store) GetPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.payouts.get(id)
}

func (s *Store) GetPayoutByRailReference(ctx context.Context, ref string) (*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.PayoutRequest
	s.payouts.each(func(p *models.PayoutRequest) {
		if found == nil && ref != "" && p.RailReference == ref {
			found = s.payouts.clone(p)
		}
	})
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListPayouts(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PayoutRequest
	s.payouts.each(func(p *models.PayoutRequest) {
		if p.AccountID == accountID {
			out = append(out, s.payouts.clone(p))
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) ListPayoutsByStatus(ctx context.Context, status string, limit int) ([]*models.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PayoutRequest
	s.payouts.each(func(p *models.PayoutRequest) {
		if p.Status == status {
			out = append(out, s.payouts.clone(p))
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) PayoutGrossSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	s.payouts.each(func(p *models.PayoutRequest) {
		if p.AccountID == accountID && p.Status != models.PayoutStatusFailed && !p.CreatedAt.Before(since) {
			total += p.GrossAmount
		}
	})
	return total, nil
}

// ---- jobs ----

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.EscrowJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs.get(id)
}

func (s *Store) ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.EscrowJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EscrowJob
	s.jobs.each(func(j *models.EscrowJob) {
		if j.Status == status {
			out = append(out, s.jobs.clone(j))
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

func (s *Store) ListJobsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.EscrowJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.EscrowJob
	s.jobs.each(func(j *models.EscrowJob) {
		if j.PosterID == accountID || (j.WorkerID != nil && *j.WorkerID == accountID) {
			out = append(out, s.jobs.clone(j))
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return truncate(out, limit), nil
}

// ---- loans ----

func (s *Store) GetLoan(ctx context.Context, id uuid.UUID) (*models.LoanAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loans.get(id)
}

func (s *Store) ActiveLoan(ctx context.Context, accountID uuid.UUID) (*models.LoanAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.LoanAccount
	s.loans.each(func(l *models.LoanAccount) {
		if found == nil && l.AccountID == accountID && l.Status == models.LoanStatusActive {
			found = s.loans.clone(l)
		}
	})
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListLoans(ctx context.Context, accountID uuid.UUID) ([]*models.LoanAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LoanAccount
	s.loans.each(func(l *models.LoanAccount) {
		if l.AccountID == accountID {
			out = append(out, s.loans.clone(l))
		}
	})
	return out, nil
}

func (s *Store) ListActiveLoansDueBefore(ctx context.Context, t time.Time, limit int) ([]*models.LoanAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LoanAccount
	s.loans.each(func(l *models.LoanAccount) {
		if l.Status == models.LoanStatusActive && l.DueAt.Before(t) {
			out = append(out, s.loans.clone(l))
		}
	})
	return truncate(out, limit), nil
}

// ---- goals ----

func (s *Store) GetGoal(ctx context.Context, id uuid.UUID) (*models.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goals.get(id)
}

func (s *Store) ListGoals(ctx context.Context, accountID uuid.UUID) ([]*models.SavingsGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.SavingsGoal
	s.goals.each(func(g *models.SavingsGoal) {
		if g.AccountID == accountID {
			out = append(out, s.goals.clone(g))
		}
	})
	return out, nil
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
