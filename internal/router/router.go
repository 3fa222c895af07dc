package router

import (
	"net/http"

	"github.com/gigwallet/backend/internal/auth"
	"github.com/gigwallet/backend/internal/handlers"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth     *auth.Handler
	Wallet   *handlers.WalletHandler
	Payouts  *handlers.PayoutHandler
	Jobs     *handlers.JobHandler
	Loans    *handlers.LoanHandler
	Savings  *handlers.SavingsHandler
	Internal *handlers.InternalHandler
	WS       http.Handler
	Metrics  http.Handler
}

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Guards are applied per route group. Worker routes run Authenticate then
// Idempotent; internal routes run Internal.
type Guards struct {
	Authenticate Middleware
	Idempotent   Middleware
	Internal     Middleware
	// Observe wraps the whole mux, e.g. for request metrics.
	Observe Middleware
}

func chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// New returns an http.Handler serving the wallet API.
func New(h Handlers, g Guards) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/register", h.Auth.Register)
	mux.HandleFunc("POST /auth/login", h.Auth.Login)

	worker := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn, g.Authenticate, g.Idempotent))
	}
	worker("GET /wallet/balance", h.Wallet.Balance)
	worker("GET /wallet/ledger", h.Wallet.History)
	worker("GET /wallet/earnings", h.Wallet.Earnings)

	worker("POST /payouts/initiate", h.Payouts.Initiate)
	worker("GET /payouts/fee-preview", h.Payouts.FeePreview)
	worker("GET /payouts", h.Payouts.List)
	worker("GET /payouts/{id}", h.Payouts.Get)

	worker("POST /community/jobs", h.Jobs.Create)
	worker("GET /community/jobs", h.Jobs.List)
	worker("GET /community/jobs/{id}", h.Jobs.Get)
	worker("POST /community/jobs/{id}/accept", h.Jobs.Accept)
	worker("POST /community/jobs/{id}/complete", h.Jobs.Complete)
	worker("POST /community/jobs/{id}/confirm", h.Jobs.Confirm)
	worker("POST /community/jobs/{id}/cancel", h.Jobs.Cancel)
	worker("POST /community/jobs/{id}/rate", h.Jobs.Rate)

	worker("GET /loans/eligibility", h.Loans.Eligibility)
	worker("POST /loans/apply", h.Loans.Apply)
	worker("POST /loans/{id}/repay", h.Loans.Repay)
	worker("GET /loans", h.Loans.List)

	worker("POST /savings/create", h.Savings.Create)
	worker("GET /savings", h.Savings.List)
	worker("POST /savings/{id}/withdraw", h.Savings.Withdraw)
	worker("POST /savings/{id}/deposit", h.Savings.Deposit)
	worker("PATCH /savings/{id}/toggle", h.Savings.Toggle)

	internal := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, chain(fn, g.Internal))
	}
	internal("POST /internal/earnings", h.Internal.Earnings)
	internal("POST /internal/payouts/callback", h.Internal.Callback)
	internal("POST /internal/float/replenish", h.Internal.Replenish)
	internal("POST /internal/accounts/tier", h.Internal.Tier)
	internal("POST /internal/community/jobs/{id}/cancel", h.Internal.CancelJob)

	if h.WS != nil {
		mux.Handle("GET /ws", h.WS)
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return chain(mux, g.Observe)
}
