package main

import (
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/gigwallet/backend/internal/config"
	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/execution"
	"github.com/gigwallet/backend/internal/payout"
)

func newRiverClient(pool *pgxpool.Pool, cfg *config.Config, payouts *payout.Processor, loans *credit.Scheduler, jobs *escrow.Coordinator, logger *slog.Logger) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, execution.NewPayoutDispatchWorker(payouts,
		execution.Backoff{Base: cfg.RetryBase, Max: cfg.RetryMax}, cfg.RailTimeout))
	river.AddWorker(workers, execution.NewPayoutSweepWorker(payouts, logger))
	river.AddWorker(workers, execution.NewLoanDefaultWorker(loans, logger))
	river.AddWorker(workers, execution.NewEscrowExpiryWorker(jobs, logger))

	return river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers: workers,
		PeriodicJobs: execution.PeriodicJobs(execution.Intervals{
			PayoutSweep:  cfg.SweepInterval,
			LoanDefaults: cfg.LoanInterval,
			EscrowExpiry: cfg.EscrowInterval,
		}),
		Logger: logger,
	})
}
