// Package execution runs background work on River: rail dispatch for
// processing payouts and the periodic sweeps for payouts, loans and escrow.
package execution

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/gigwallet/backend/internal/payout"
)

type PayoutDispatchArgs struct {
	PayoutID uuid.UUID `json:"payout_id"`
}

func (PayoutDispatchArgs) Kind() string { return "payout_dispatch" }

// PayoutDispatcher is the contract the dispatch worker needs from the payout processor.
type PayoutDispatcher interface {
	Dispatch(ctx context.Context, payoutID uuid.UUID, final bool) error
}

// Backoff doubles the delay after every failed attempt up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay is the wait before the retry that follows the given attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

type PayoutDispatchWorker struct {
	river.WorkerDefaults[PayoutDispatchArgs]
	payouts PayoutDispatcher
	backoff Backoff
	timeout time.Duration
}

func NewPayoutDispatchWorker(payouts PayoutDispatcher, backoff Backoff, timeout time.Duration) *PayoutDispatchWorker {
	return &PayoutDispatchWorker{payouts: payouts, backoff: backoff, timeout: timeout}
}

// Work submits the payout. On the last attempt a rail outage fails the
// payout instead of returning an error, so funds are never left in flight.
func (w *PayoutDispatchWorker) Work(ctx context.Context, job *river.Job[PayoutDispatchArgs]) error {
	final := job.MaxAttempts > 0 && job.Attempt >= job.MaxAttempts
	return w.payouts.Dispatch(ctx, job.Args.PayoutID, final)
}

func (w *PayoutDispatchWorker) NextRetry(job *river.Job[PayoutDispatchArgs]) time.Time {
	return time.Now().Add(w.backoff.Delay(job.Attempt))
}

func (w *PayoutDispatchWorker) Timeout(job *river.Job[PayoutDispatchArgs]) time.Duration {
	return w.timeout
}

// ---- periodic sweeps ----

type PayoutSweepArgs struct{}

func (PayoutSweepArgs) Kind() string { return "payout_sweep" }

type PayoutSweeper interface {
	Sweep(ctx context.Context) (payout.SweepResult, error)
}

type PayoutSweepWorker struct {
	river.WorkerDefaults[PayoutSweepArgs]
	payouts PayoutSweeper
	log     *slog.Logger
}

func NewPayoutSweepWorker(payouts PayoutSweeper, log *slog.Logger) *PayoutSweepWorker {
	return &PayoutSweepWorker{payouts: payouts, log: log}
}

func (w *PayoutSweepWorker) Work(ctx context.Context, job *river.Job[PayoutSweepArgs]) error {
	res, err := w.payouts.Sweep(ctx)
	if err != nil {
		return err
	}
	if res != (payout.SweepResult{}) {
		w.log.Info("payout sweep", "settled", res.Settled, "drained", res.Drained,
			"timed_out", res.TimedOut, "expired", res.Expired)
	}
	return nil
}

type LoanDefaultArgs struct{}

func (LoanDefaultArgs) Kind() string { return "loan_default_sweep" }

type LoanDefaulter interface {
	MarkDefaults(ctx context.Context) (int, error)
}

type LoanDefaultWorker struct {
	river.WorkerDefaults[LoanDefaultArgs]
	loans LoanDefaulter
	log   *slog.Logger
}

func NewLoanDefaultWorker(loans LoanDefaulter, log *slog.Logger) *LoanDefaultWorker {
	return &LoanDefaultWorker{loans: loans, log: log}
}

func (w *LoanDefaultWorker) Work(ctx context.Context, job *river.Job[LoanDefaultArgs]) error {
	n, err := w.loans.MarkDefaults(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("loans defaulted", "count", n)
	}
	return nil
}

type EscrowExpiryArgs struct{}

func (EscrowExpiryArgs) Kind() string { return "escrow_expiry_sweep" }

type JobExpirer interface {
	ExpireOpen(ctx context.Context) (int, error)
}

type EscrowExpiryWorker struct {
	river.WorkerDefaults[EscrowExpiryArgs]
	jobs JobExpirer
	log  *slog.Logger
}

func NewEscrowExpiryWorker(jobs JobExpirer, log *slog.Logger) *EscrowExpiryWorker {
	return &EscrowExpiryWorker{jobs: jobs, log: log}
}

func (w *EscrowExpiryWorker) Work(ctx context.Context, job *river.Job[EscrowExpiryArgs]) error {
	n, err := w.jobs.ExpireOpen(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		w.log.Info("escrow jobs expired", "count", n)
	}
	return nil
}

// Intervals configures how often each periodic sweep runs.
type Intervals struct {
	PayoutSweep  time.Duration
	LoanDefaults time.Duration
	EscrowExpiry time.Duration
}

func PeriodicJobs(iv Intervals) []*river.PeriodicJob {
	periodic := func(every time.Duration, args river.JobArgs) *river.PeriodicJob {
		return river.NewPeriodicJob(
			river.PeriodicInterval(every),
			func() (river.JobArgs, *river.InsertOpts) {
				return args, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		)
	}
	return []*river.PeriodicJob{
		periodic(iv.PayoutSweep, PayoutSweepArgs{}),
		periodic(iv.LoanDefaults, LoanDefaultArgs{}),
		periodic(iv.EscrowExpiry, EscrowExpiryArgs{}),
	}
}
