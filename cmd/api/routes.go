package main

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gigwallet/backend/internal/auth"
	"github.com/gigwallet/backend/internal/config"
	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/handlers"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/metrics"
	"github.com/gigwallet/backend/internal/middleware"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/router"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/validator"
	"github.com/gigwallet/backend/internal/ws"
)

// idempotencyLockTTL bounds how long a crashed request can hold its key.
const idempotencyLockTTL = 30 * time.Second

type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator *validator.Validator
	auth      *auth.Service
	locker    middleware.Locker
	bus       *events.Bus
	ledger    *ledger.Service
	payouts   *payout.Processor
	jobs      *escrow.Coordinator
	loans     *credit.Scheduler
	savings   *savings.Allocator
}

func newRouter(a app) http.Handler {
	log := a.logger
	originOK := func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(a.cfg.CORSOrigins, origin)
	}
	return router.New(router.Handlers{
		Auth:     auth.NewHandler(a.auth, log),
		Wallet:   &handlers.WalletHandler{Wallet: a.ledger, Logger: log},
		Payouts:  &handlers.PayoutHandler{Payouts: a.payouts, Validator: a.validator, Logger: log},
		Jobs:     &handlers.JobHandler{Jobs: a.jobs, Validator: a.validator, Logger: log},
		Loans:    &handlers.LoanHandler{Loans: a.loans, Validator: a.validator, Logger: log},
		Savings:  &handlers.SavingsHandler{Goals: a.savings, Validator: a.validator, Logger: log},
		Internal: &handlers.InternalHandler{Ledger: a.ledger, Payouts: a.payouts, Jobs: a.jobs, Validator: a.validator, Logger: log},
		WS:       ws.NewHandler(a.auth, a.bus, originOK, log),
		Metrics:  a.metrics.Handler(),
	}, router.Guards{
		Authenticate: middleware.BearerAuth(a.auth),
		Idempotent:   middleware.Idempotency(a.locker, idempotencyLockTTL, log),
		Internal:     middleware.InternalAPIKey(a.cfg.InternalAPIKey),
		Observe:      a.metrics.Middleware,
	})
}
