package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

func insertAccount(t *testing.T, s *Store) *models.Account {
	t.Helper()
	a := &models.Account{ID: uuid.New(), Version: 1, SubscriptionTier: models.TierFree}
	if err := s.Commit(context.Background(), &store.Batch{
		Accounts: []store.Write[*models.Account]{{Record: a, Insert: true}},
	}); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	return a
}

func TestCommit_VersionConflictAppliesNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := insertAccount(t, s)

	stale := *a
	stale.AvailableBalance = 500
	stale.Version = 2
	entry := &models.LedgerEntry{ID: uuid.New(), AccountID: a.ID, Kind: models.EntryEarning, Amount: 500}
	err := s.Commit(ctx, &store.Batch{
		Idempotency: &models.IdempotencyRecord{Key: "k", EntityID: entry.ID},
		Accounts:    []store.Write[*models.Account]{{Record: &stale, ExpectedVersion: 7}},
		Entries:     []*models.LedgerEntry{entry},
	})
	if !errors.Is(err, store.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	got, _ := s.GetAccount(ctx, a.ID)
	if got.AvailableBalance != 0 || got.Version != 1 {
		t.Errorf("account mutated by failed commit: %+v", got)
	}
	if _, err := s.GetIdempotency(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("idempotency key recorded by failed commit")
	}
	if entries, _ := s.ListEntries(ctx, a.ID, 0); len(entries) != 0 {
		t.Errorf("entries written by failed commit: %d", len(entries))
	}
}

func TestCommit_DuplicateKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	rec := &models.IdempotencyRecord{Key: "k", EntityID: uuid.New()}
	if err := s.Commit(ctx, &store.Batch{Idempotency: rec}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := s.Commit(ctx, &store.Batch{Idempotency: rec}); !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCommit_SingleActiveLoan(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := insertAccount(t, s)
	loan := func() *models.LoanAccount {
		return &models.LoanAccount{ID: uuid.New(), AccountID: a.ID, Status: models.LoanStatusActive, Version: 1}
	}
	if err := s.Commit(ctx, &store.Batch{Loans: []store.Write[*models.LoanAccount]{{Record: loan(), Insert: true}}}); err != nil {
		t.Fatalf("first loan: %v", err)
	}
	err := s.Commit(ctx, &store.Batch{Loans: []store.Write[*models.LoanAccount]{{Record: loan(), Insert: true}}})
	if !errors.Is(err, store.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation for a second active loan, got %v", err)
	}
}

func TestReads_ReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := insertAccount(t, s)
	got, _ := s.GetAccount(ctx, a.ID)
	got.AvailableBalance = 999
	again, _ := s.GetAccount(ctx, a.ID)
	if again.AvailableBalance != 0 {
		t.Fatal("mutating a returned account changed the store")
	}
}

func TestListPayoutsByStatus_OldestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	a := insertAccount(t, s)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var writes []store.Write[*models.PayoutRequest]
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		writes = append(writes, store.Write[*models.PayoutRequest]{Insert: true, Record: &models.PayoutRequest{
			ID: uuid.New(), AccountID: a.ID, GrossAmount: int64(i + 1), Status: models.PayoutStatusQueued,
			CreatedAt: base.Add(offset), Version: 1,
		}})
	}
	if err := s.Commit(ctx, &store.Batch{Payouts: writes}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	list, _ := s.ListPayoutsByStatus(ctx, models.PayoutStatusQueued, 0)
	if len(list) != 3 {
		t.Fatalf("got %d payouts, want 3", len(list))
	}
	if list[0].GrossAmount != 2 || list[1].GrossAmount != 3 || list[2].GrossAmount != 1 {
		t.Fatalf("unexpected order: %d, %d, %d", list[0].GrossAmount, list[1].GrossAmount, list[2].GrossAmount)
	}
}
