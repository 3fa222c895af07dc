package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store/memory"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator(t *testing.T) (*Coordinator, *ledger.Service, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)}
	l := ledger.NewService(memory.New(), ledger.WithClock(clk.Now))
	return NewCoordinator(l, Config{MinAmount: 100, TTL: 48 * time.Hour}, nil), l, clk
}

func open(t *testing.T, l *ledger.Service, funded int64) uuid.UUID {
	t.Helper()
	acc, err := l.OpenAccount(context.Background(), uuid.Nil, models.TierFree, false)
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if funded > 0 {
		if _, err := l.ApplyEntry(context.Background(), acc.ID, models.EntryEarning, funded, uuid.Nil, ""); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return acc.ID
}

func balances(t *testing.T, l *ledger.Service, id uuid.UUID) (available, locked int64) {
	t.Helper()
	acc, err := l.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return acc.AvailableBalance, acc.LockedBalance
}

// assertLocksBalance checks that a job's lock is fully offset by its release
// or refund entries.
func assertLocksBalance(t *testing.T, l *ledger.Service, jobID uuid.UUID) {
	t.Helper()
	entries, err := l.Store().ListEntriesByRelated(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ListEntriesByRelated: %v", err)
	}
	var lock, unlock int64
	for _, e := range entries {
		switch e.Kind {
		case models.EntryEscrowLock:
			lock += e.LockedDelta
		case models.EntryEscrowRelease, models.EntryEscrowRefund:
			unlock += e.LockedDelta
		}
	}
	if lock != -unlock {
		t.Errorf("job %s locked %d but released %d", jobID, lock, -unlock)
	}
}

// ---- lifecycle ----

func TestLifecycle_ConfirmPaysWorker(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)

	job, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "Move boxes", Amount: 2000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if avail, locked := balances(t, l, poster); avail != 3000 || locked != 2000 {
		t.Fatalf("after lock: available=%d locked=%d, want 3000 2000", avail, locked)
	}

	if _, err := c.Accept(ctx, job.ID, worker); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := c.Confirm(ctx, job.ID, poster); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Fatalf("confirm before completion: err = %v, want ErrInvalidStateTransition", err)
	}
	if _, err := c.Complete(ctx, job.ID, worker); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	done, err := c.Confirm(ctx, job.ID, poster)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if done.Status != models.JobStatusConfirmed {
		t.Errorf("status = %s, want confirmed", done.Status)
	}
	if avail, locked := balances(t, l, poster); avail != 3000 || locked != 0 {
		t.Errorf("poster available=%d locked=%d, want 3000 0", avail, locked)
	}
	wacc, _ := l.Balance(ctx, worker)
	if wacc.AvailableBalance != 2000 || wacc.LifetimeEarned != 2000 {
		t.Errorf("worker available=%d earned=%d, want 2000 2000", wacc.AvailableBalance, wacc.LifetimeEarned)
	}
	assertLocksBalance(t, l, job.ID)

	if _, err := c.Cancel(ctx, job.ID, poster); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("cancel after confirm: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestCreate_Refusals(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 1000)

	if _, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "x", Amount: 50}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("below minimum: err = %v, want ErrInvalidJob", err)
	}
	if _, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "  ", Amount: 500}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("blank title: err = %v, want ErrInvalidJob", err)
	}
	if _, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "x", Amount: 1500}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("overdraw: err = %v, want ErrInsufficientFunds", err)
	}
	if avail, locked := balances(t, l, poster); avail != 1000 || locked != 0 {
		t.Errorf("refusals moved funds: available=%d locked=%d", avail, locked)
	}
}

func TestCreate_IdempotentReplay(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	in := CreateInput{PosterID: poster, Title: "Paint fence", Amount: 1000, IdempotencyKey: "j1"}

	first, err := c.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	again, err := c.Create(ctx, in)
	if !errors.Is(err, ledger.ErrDuplicateOperation) || again.ID != first.ID {
		t.Fatalf("replay = %v, %v; want the first job with ErrDuplicateOperation", again, err)
	}
	if avail, _ := balances(t, l, poster); avail != 4000 {
		t.Errorf("available = %d, want one lock (4000)", avail)
	}
}

// ---- accept ----

func TestAccept_ConcurrentSingleWinner(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	job, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 1000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 10
	workers := make([]uuid.UUID, n)
	for i := range workers {
		workers[i] = open(t, l, 0)
	}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var winners []uuid.UUID
	for _, w := range workers {
		wg.Add(1)
		go func(w uuid.UUID) {
			defer wg.Done()
			_, err := c.Accept(ctx, job.ID, w)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, w)
			case errors.Is(err, ErrJobAlreadyAssigned), errors.Is(err, ledger.ErrConcurrentModification):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(w)
	}
	wg.Wait()
	if len(winners) != 1 {
		t.Fatalf("%d accept winners, want 1", len(winners))
	}
	got, _ := c.Get(ctx, job.ID)
	if got.WorkerID == nil || *got.WorkerID != winners[0] {
		t.Errorf("job worker = %v, want %s", got.WorkerID, winners[0])
	}
}

func TestAccept_Refusals(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	job, err := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 1000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := c.Accept(ctx, job.ID, poster); !errors.Is(err, ErrSelfAccept) {
		t.Errorf("self accept: err = %v, want ErrSelfAccept", err)
	}
	if _, err := c.Accept(ctx, uuid.New(), worker); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("unknown job: err = %v, want ErrNotFound", err)
	}
	if _, err := c.Complete(ctx, job.ID, worker); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("complete unassigned: err = %v, want ErrNotParticipant", err)
	}
	if _, err := c.Cancel(ctx, job.ID, worker); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("cancel by non-poster: err = %v, want ErrNotParticipant", err)
	}
	if _, err := c.Cancel(ctx, job.ID, poster); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := c.Accept(ctx, job.ID, worker); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("accept cancelled: err = %v, want ErrInvalidStateTransition", err)
	}
}

// ---- cancel ----

func TestCancel_PosterCannotCancelAssigned(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	job, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 2000})
	if _, err := c.Accept(ctx, job.ID, worker); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if _, err := c.Cancel(ctx, job.ID, poster); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Fatalf("cancel assigned: err = %v, want ErrInvalidStateTransition", err)
	}
	got, _ := c.Get(ctx, job.ID)
	if got.Status != models.JobStatusAssigned {
		t.Errorf("status = %s, want assigned", got.Status)
	}
	if avail, locked := balances(t, l, poster); avail != 3000 || locked != 2000 {
		t.Errorf("poster available=%d locked=%d, want 3000 2000", avail, locked)
	}
	assertLocksBalance(t, l, job.ID)
}

func TestDispute_AssignedRefundsPoster(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	job, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 2000})
	if _, err := c.Accept(ctx, job.ID, worker); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	got, err := c.Dispute(ctx, job.ID, "worker no-show")
	if err != nil {
		t.Fatalf("Dispute: %v", err)
	}
	if got.Status != models.JobStatusCancelled || got.CancelReason != ReasonDisputed+": worker no-show" {
		t.Errorf("job = %s/%s", got.Status, got.CancelReason)
	}
	if avail, locked := balances(t, l, poster); avail != 5000 || locked != 0 {
		t.Errorf("poster available=%d locked=%d, want 5000 0", avail, locked)
	}
	if avail, _ := balances(t, l, worker); avail != 0 {
		t.Errorf("worker available = %d, want 0", avail)
	}
	assertLocksBalance(t, l, job.ID)
	if _, err := c.Confirm(ctx, job.ID, poster); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("confirm cancelled: err = %v, want ErrInvalidStateTransition", err)
	}
	if _, err := c.Dispute(ctx, job.ID, ""); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("second dispute: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestDispute_CompletedJobIsRefused(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	job, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 2000})
	c.Accept(ctx, job.ID, worker)
	if _, err := c.Complete(ctx, job.ID, worker); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := c.Dispute(ctx, job.ID, "late"); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("dispute completed: err = %v, want ErrInvalidStateTransition", err)
	}
}

func TestCancelVersusAccept_OneOutcome(t *testing.T) {
	for i := 0; i < 20; i++ {
		c, l, _ := newTestCoordinator(t)
		ctx := context.Background()
		poster := open(t, l, 5000)
		worker := open(t, l, 0)
		job, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 2000})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); c.Accept(ctx, job.ID, worker) }()
		go func() { defer wg.Done(); c.Cancel(ctx, job.ID, poster) }()
		wg.Wait()

		got, _ := c.Get(ctx, job.ID)
		avail, locked := balances(t, l, poster)
		if avail+locked != 5000 {
			t.Fatalf("poster holds %d, want 5000", avail+locked)
		}
		if got.Status == models.JobStatusCancelled && locked != 0 {
			t.Fatalf("cancelled job still locks %d", locked)
		}
		assertLocksBalance(t, l, job.ID)
	}
}

// ---- ratings ----

func TestRate_ConfirmedJobOnly(t *testing.T) {
	c, l, _ := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	outsider := open(t, l, 0)
	job, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Deliver", Amount: 2000})
	c.Accept(ctx, job.ID, worker)
	c.Complete(ctx, job.ID, worker)

	if _, err := c.Rate(ctx, RateInput{JobID: job.ID, RaterID: poster, Rating: 5}); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Errorf("rate before confirm: err = %v, want ErrInvalidStateTransition", err)
	}
	if _, err := c.Confirm(ctx, job.ID, poster); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	cases := []struct {
		name string
		in   RateInput
		want error
	}{
		{"out of range", RateInput{JobID: job.ID, RaterID: poster, Rating: 6}, ErrInvalidRating},
		{"outsider", RateInput{JobID: job.ID, RaterID: outsider, Rating: 3}, ErrNotParticipant},
		{"poster rates worker", RateInput{JobID: job.ID, RaterID: poster, Rating: 5, Review: " quick "}, nil},
		{"worker rates poster", RateInput{JobID: job.ID, RaterID: worker, Rating: 4}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Rate(ctx, tc.in)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}

	got, _ := c.Get(ctx, job.ID)
	if got.WorkerRating != 5 || got.WorkerReview != "quick" || got.PosterRating != 4 {
		t.Errorf("ratings = worker %d %q, poster %d", got.WorkerRating, got.WorkerReview, got.PosterRating)
	}
	if avail, _ := balances(t, l, worker); avail != 2000 {
		t.Errorf("rating moved funds: worker available = %d", avail)
	}
}

// ---- expiry ----

func TestExpireOpen(t *testing.T) {
	c, l, clk := newTestCoordinator(t)
	ctx := context.Background()
	poster := open(t, l, 5000)
	worker := open(t, l, 0)
	stale, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Open", Amount: 1000})
	taken, _ := c.Create(ctx, CreateInput{PosterID: poster, Title: "Taken", Amount: 1000})
	if _, err := c.Accept(ctx, taken.ID, worker); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	if n, _ := c.ExpireOpen(ctx); n != 0 {
		t.Fatalf("expired %d before TTL", n)
	}
	clk.Advance(49 * time.Hour)
	n, err := c.ExpireOpen(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ExpireOpen = %d, %v; want 1", n, err)
	}
	got, _ := c.Get(ctx, stale.ID)
	if got.Status != models.JobStatusCancelled || got.CancelReason != ReasonExpired {
		t.Errorf("stale job = %s/%s", got.Status, got.CancelReason)
	}
	if got, _ := c.Get(ctx, taken.ID); got.Status != models.JobStatusAssigned {
		t.Errorf("assigned job status = %s", got.Status)
	}
	if avail, locked := balances(t, l, poster); avail != 4000 || locked != 1000 {
		t.Errorf("poster available=%d locked=%d, want 4000 1000", avail, locked)
	}
}
