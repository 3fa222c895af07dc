package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/gigscore"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/liquidity"
	"github.com/gigwallet/backend/internal/middleware"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/rail"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/store/memory"
	"github.com/gigwallet/backend/internal/validator"
)

// ---------------------------------------------------------------------------
// Fixture: the full service stack on the in-memory store
// ---------------------------------------------------------------------------

const testAccountHeader = "X-Test-Account"

type stack struct {
	ledger *ledger.Service
	proc   *payout.Processor
	mux    http.Handler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.DiscardHandler)
	l := ledger.NewService(memory.New())
	if err := l.EnsurePlatformAccount(ctx); err != nil {
		t.Fatalf("EnsurePlatformAccount: %v", err)
	}
	v, err := validator.New()
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	sched := credit.NewScheduler(l, gigscore.Static(600), credit.DefaultPolicy(), log)
	alloc := savings.NewAllocator(l, sched, decimal.NewFromInt(10), log)
	proc := payout.NewProcessor(l, liquidity.NewMemoryGauge(1_000_000), rail.NewStubClient(), events.NewBus(8, log), payout.Config{
		DailyLimit:     5_000_000,
		Timeout:        15 * time.Minute,
		QueueTTL:       6 * time.Hour,
		SettlementHour: 4,
	}, log)
	proc.UseLoans(sched)
	proc.OnComplete(sched, alloc)
	jobs := escrow.NewCoordinator(l, escrow.Config{MinAmount: 100, TTL: 24 * time.Hour}, log)

	wallet := &WalletHandler{Wallet: l, Logger: log}
	payouts := &PayoutHandler{Payouts: proc, Validator: v, Logger: log}
	community := &JobHandler{Jobs: jobs, Validator: v, Logger: log}
	loans := &LoanHandler{Loans: sched, Validator: v, Logger: log}
	goals := &SavingsHandler{Goals: alloc, Validator: v, Logger: log}
	internal := &InternalHandler{Ledger: l, Payouts: proc, Jobs: jobs, Validator: v, Logger: log}

	mux := http.NewServeMux()
	routes := map[string]http.HandlerFunc{
		"GET /wallet/balance":                       wallet.Balance,
		"GET /wallet/ledger":                        wallet.History,
		"GET /wallet/earnings":                      wallet.Earnings,
		"POST /payouts/initiate":                    payouts.Initiate,
		"GET /payouts/fee-preview":                  payouts.FeePreview,
		"GET /payouts/{id}":                         payouts.Get,
		"POST /community/jobs":                      community.Create,
		"POST /community/jobs/{id}/accept":          community.Accept,
		"POST /community/jobs/{id}/complete":        community.Complete,
		"POST /community/jobs/{id}/confirm":         community.Confirm,
		"POST /community/jobs/{id}/cancel":          community.Cancel,
		"POST /community/jobs/{id}/rate":            community.Rate,
		"GET /loans/eligibility":                    loans.Eligibility,
		"POST /loans/apply":                         loans.Apply,
		"POST /loans/{id}/repay":                    loans.Repay,
		"POST /savings/create":                      goals.Create,
		"POST /savings/{id}/deposit":                goals.Deposit,
		"PATCH /savings/{id}/toggle":                goals.Toggle,
		"POST /internal/earnings":                   internal.Earnings,
		"POST /internal/payouts/callback":           internal.Callback,
		"POST /internal/community/jobs/{id}/cancel": internal.CancelJob,
	}
	for pattern, fn := range routes {
		mux.HandleFunc(pattern, fn)
	}
	// Stands in for BearerAuth: the caller is named by a test header.
	withAccount := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := uuid.Parse(r.Header.Get(testAccountHeader))
		mux.ServeHTTP(w, r.WithContext(middleware.WithAccountID(r.Context(), id)))
	})
	return &stack{ledger: l, proc: proc, mux: withAccount}
}

func (s *stack) account(t *testing.T, earned int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	acc, err := s.ledger.OpenAccount(ctx, uuid.Nil, models.TierFree, false)
	if err != nil {
		t.Fatalf("OpenAccount: %v", err)
	}
	if earned > 0 {
		if _, err := s.ledger.ApplyEntry(ctx, acc.ID, models.EntryEarning, earned, uuid.Nil, ""); err != nil {
			t.Fatalf("fund: %v", err)
		}
	}
	return acc.ID
}

type call struct {
	method, path string
	as           uuid.UUID
	body         any
	key          string
}

func (s *stack) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set(testAccountHeader, c.as.String())
	if c.key != "" {
		req.Header.Set(middleware.IdempotencyHeader, c.key)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) ErrorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, status, rec.Body)
	}
	body := decodeBody[ErrorResponse](t, rec)
	if body.Error != code {
		t.Fatalf("error code = %q, want %q", body.Error, code)
	}
	return body
}

// ---------------------------------------------------------------------------
// Wallet
// ---------------------------------------------------------------------------

func TestWallet_BalanceAndEarnings(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)

	rec := s.do(t, call{method: http.MethodGet, path: "/wallet/balance", as: worker})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	bal := decodeBody[map[string]any](t, rec)
	if bal["availableBalance"] != float64(20000) || bal["lockedBalance"] != float64(0) || bal["lifetimeEarned"] != float64(20000) {
		t.Errorf("balance = %v", bal)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/wallet/earnings", as: worker})
	earn := decodeBody[earningsResponse](t, rec)
	if earn.Total != 20000 || earn.ActiveDays != 1 || earn.AverageDaily != 20000 || earn.WindowDays != 30 {
		t.Errorf("earnings = %+v", earn)
	}
}

func TestWallet_UnknownAccount(t *testing.T) {
	s := newStack(t)
	rec := s.do(t, call{method: http.MethodGet, path: "/wallet/balance", as: uuid.New()})
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

// ---------------------------------------------------------------------------
// Payouts
// ---------------------------------------------------------------------------

func TestPayouts_InitiateReplaysIdempotencyKey(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)
	req := call{method: http.MethodPost, path: "/payouts/initiate", as: worker, key: "cashout-1",
		body: map[string]any{"amount": 10000, "type": "instant"}}

	first := s.do(t, req)
	if first.Code != http.StatusAccepted {
		t.Fatalf("first: status = %d, body %s", first.Code, first.Body)
	}
	created := decodeBody[initiateResponse](t, first)
	if created.Fee != 150 || created.NetAmount != 9850 || created.Status != models.PayoutStatusProcessing {
		t.Errorf("created = %+v", created)
	}

	second := s.do(t, req)
	if second.Code != http.StatusOK || second.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("replay: status = %d, replayed = %q", second.Code, second.Header().Get(ReplayedHeader))
	}
	if again := decodeBody[initiateResponse](t, second); again.PayoutID != created.PayoutID {
		t.Errorf("replay returned payout %s, want %s", again.PayoutID, created.PayoutID)
	}

	acc, _ := s.ledger.Balance(context.Background(), worker)
	if acc.AvailableBalance != 10000 {
		t.Errorf("available = %d, want one debit of 10000", acc.AvailableBalance)
	}
}

func TestPayouts_Refusals(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 5000)

	rec := s.do(t, call{method: http.MethodPost, path: "/payouts/initiate", as: worker,
		body: map[string]any{"amount": 10000, "type": "same_day"}})
	expectError(t, rec, http.StatusConflict, "INSUFFICIENT_FUNDS")

	rec = s.do(t, call{method: http.MethodPost, path: "/payouts/initiate", as: worker,
		body: map[string]any{"amount": 100, "type": "overnight"}})
	expectError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.do(t, call{method: http.MethodGet, path: "/payouts/" + uuid.NewString(), as: worker})
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestPayouts_FeePreview(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)

	rec := s.do(t, call{method: http.MethodGet, path: "/payouts/fee-preview?amount=10000&type=same_day", as: worker})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	p := decodeBody[map[string]any](t, rec)
	if p["fee"] != float64(100) || p["netAmount"] != float64(9900) || p["floatAvailable"] != float64(1_000_000) {
		t.Errorf("preview = %v", p)
	}

	rec = s.do(t, call{method: http.MethodGet, path: "/payouts/fee-preview?amount=-5", as: worker})
	expectError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")
}

func TestPayouts_CallbackCompletesAndLateCallbackIsIgnored(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)
	rec := s.do(t, call{method: http.MethodPost, path: "/payouts/initiate", as: worker,
		body: map[string]any{"amount": 10000, "type": "same_day"}})
	created := decodeBody[initiateResponse](t, rec)

	cb := map[string]any{"payoutId": created.PayoutID, "status": "completed"}
	rec = s.do(t, call{method: http.MethodPost, path: "/internal/payouts/callback", body: cb})
	if rec.Code != http.StatusOK {
		t.Fatalf("callback: status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeBody[map[string]any](t, rec); got["status"] != models.PayoutStatusCompleted {
		t.Errorf("callback result = %v", got)
	}

	late := map[string]any{"payoutId": created.PayoutID, "status": "failed", "reason": "timeout at rail"}
	rec = s.do(t, call{method: http.MethodPost, path: "/internal/payouts/callback", body: late})
	if got := decodeBody[map[string]any](t, rec); rec.Code != http.StatusOK || got["status"] != models.PayoutStatusCompleted {
		t.Errorf("late callback: status %d, body %v", rec.Code, got)
	}
}

// ---------------------------------------------------------------------------
// Community jobs
// ---------------------------------------------------------------------------

func TestJobs_LifecycleOverHTTP(t *testing.T) {
	s := newStack(t)
	poster := s.account(t, 5000)
	worker := s.account(t, 0)
	rival := s.account(t, 0)

	rec := s.do(t, call{method: http.MethodPost, path: "/community/jobs", as: poster,
		body: map[string]any{"amount": 2000, "title": "Move boxes"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body)
	}
	job := decodeBody[models.EscrowJob](t, rec)
	base := "/community/jobs/" + job.ID.String()

	if rec := s.do(t, call{method: http.MethodPost, path: base + "/accept", as: worker}); rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d, body %s", rec.Code, rec.Body)
	}
	rec = s.do(t, call{method: http.MethodPost, path: base + "/accept", as: rival})
	expectError(t, rec, http.StatusConflict, "JOB_ALREADY_ASSIGNED")

	rec = s.do(t, call{method: http.MethodPost, path: base + "/confirm", as: poster})
	expectError(t, rec, http.StatusConflict, "INVALID_STATE_TRANSITION")

	if rec := s.do(t, call{method: http.MethodPost, path: base + "/complete", as: worker}); rec.Code != http.StatusOK {
		t.Fatalf("complete: status = %d", rec.Code)
	}
	rec = s.do(t, call{method: http.MethodPost, path: base + "/confirm", as: worker})
	expectError(t, rec, http.StatusForbidden, "FORBIDDEN")

	rec = s.do(t, call{method: http.MethodPost, path: base + "/confirm", as: poster})
	if got := decodeBody[jobStatusResponse](t, rec); rec.Code != http.StatusOK || got.Status != models.JobStatusConfirmed {
		t.Fatalf("confirm: status %d, body %+v", rec.Code, got)
	}

	p, _ := s.ledger.Balance(context.Background(), poster)
	w, _ := s.ledger.Balance(context.Background(), worker)
	if p.AvailableBalance != 3000 || p.LockedBalance != 0 || w.AvailableBalance != 2000 {
		t.Errorf("poster %d/%d, worker %d", p.AvailableBalance, p.LockedBalance, w.AvailableBalance)
	}
}

func TestJobs_AssignedCancelGoesThroughDispute(t *testing.T) {
	s := newStack(t)
	poster := s.account(t, 5000)
	worker := s.account(t, 0)

	rec := s.do(t, call{method: http.MethodPost, path: "/community/jobs", as: poster,
		body: map[string]any{"amount": 2000, "title": "Deliver parcel"}})
	job := decodeBody[models.EscrowJob](t, rec)
	base := "/community/jobs/" + job.ID.String()
	if rec := s.do(t, call{method: http.MethodPost, path: base + "/accept", as: worker}); rec.Code != http.StatusOK {
		t.Fatalf("accept: status = %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodPost, path: base + "/cancel", as: poster})
	expectError(t, rec, http.StatusConflict, "INVALID_STATE_TRANSITION")

	rec = s.do(t, call{method: http.MethodPost, path: "/internal" + base + "/cancel", body: map[string]any{}})
	expectError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.do(t, call{method: http.MethodPost, path: "/internal" + base + "/cancel",
		body: map[string]any{"reason": "worker unreachable"}})
	if got := decodeBody[jobStatusResponse](t, rec); rec.Code != http.StatusOK || got.Status != models.JobStatusCancelled {
		t.Fatalf("dispute: status %d, body %+v", rec.Code, got)
	}
	p, _ := s.ledger.Balance(context.Background(), poster)
	if p.AvailableBalance != 5000 || p.LockedBalance != 0 {
		t.Errorf("poster %d/%d, want 5000/0", p.AvailableBalance, p.LockedBalance)
	}
}

func TestJobs_RateAfterConfirm(t *testing.T) {
	s := newStack(t)
	poster := s.account(t, 5000)
	worker := s.account(t, 0)

	rec := s.do(t, call{method: http.MethodPost, path: "/community/jobs", as: poster,
		body: map[string]any{"amount": 1000, "title": "Fix tap"}})
	job := decodeBody[models.EscrowJob](t, rec)
	base := "/community/jobs/" + job.ID.String()
	s.do(t, call{method: http.MethodPost, path: base + "/accept", as: worker})
	s.do(t, call{method: http.MethodPost, path: base + "/complete", as: worker})

	rec = s.do(t, call{method: http.MethodPost, path: base + "/rate", as: poster, body: map[string]any{"rating": 5}})
	expectError(t, rec, http.StatusConflict, "INVALID_STATE_TRANSITION")

	s.do(t, call{method: http.MethodPost, path: base + "/confirm", as: poster})
	rec = s.do(t, call{method: http.MethodPost, path: base + "/rate", as: poster, body: map[string]any{"rating": 9}})
	expectError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	rec = s.do(t, call{method: http.MethodPost, path: base + "/rate", as: poster,
		body: map[string]any{"rating": 4, "review": "tidy work"}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("rate: status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decodeBody[models.EscrowJob](t, rec); got.WorkerRating != 4 || got.WorkerReview != "tidy work" {
		t.Errorf("rated job = %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Loans and savings
// ---------------------------------------------------------------------------

func TestLoans_ApplyThenSecondIsRefused(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)

	rec := s.do(t, call{method: http.MethodGet, path: "/loans/eligibility", as: worker})
	el := decodeBody[credit.Eligibility](t, rec)
	if !el.Eligible || el.MaxAmount != 150000 {
		t.Fatalf("eligibility = %+v", el)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/loans/apply", as: worker, body: map[string]any{"amount": 10000}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("apply: status = %d, body %s", rec.Code, rec.Body)
	}
	loan := decodeBody[models.LoanAccount](t, rec)

	rec = s.do(t, call{method: http.MethodPost, path: "/loans/apply", as: worker, body: map[string]any{"amount": 5000}})
	expectError(t, rec, http.StatusConflict, "ACTIVE_LOAN_EXISTS")

	rec = s.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/loans/%s/repay", loan.ID), as: worker,
		body: map[string]any{"amount": loan.TotalRepayable + 1}})
	expectError(t, rec, http.StatusBadRequest, "OVERPAYMENT_NOT_ALLOWED")
}

func TestLoans_ApplyRetryIsReplayed(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 0)
	req := call{method: http.MethodPost, path: "/loans/apply", as: worker, key: "advance-1",
		body: map[string]any{"amount": 10000}}

	first := s.do(t, req)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: status = %d, body %s", first.Code, first.Body)
	}
	created := decodeBody[models.LoanAccount](t, first)

	second := s.do(t, req)
	if second.Code != http.StatusOK || second.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("retry: status = %d, replayed = %q, body %s", second.Code, second.Header().Get(ReplayedHeader), second.Body)
	}
	if again := decodeBody[models.LoanAccount](t, second); again.ID != created.ID {
		t.Errorf("retry returned loan %s, want %s", again.ID, created.ID)
	}
	acc, _ := s.ledger.Balance(context.Background(), worker)
	if acc.AvailableBalance != 10000 {
		t.Errorf("available = %d, want a single disbursement of 10000", acc.AvailableBalance)
	}
}

func TestSavings_AffordabilityCapDetails(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)

	rec := s.do(t, call{method: http.MethodPost, path: "/savings/create", as: worker,
		body: map[string]any{"name": "rent", "targetAmount": 50000, "dailyDeductionLimit": 2500}})
	body := expectError(t, rec, http.StatusBadRequest, "AFFORDABILITY_CAP_EXCEEDED")
	details, ok := body.Details.(map[string]any)
	if !ok {
		t.Fatalf("details = %#v", body.Details)
	}
	if details["maxAllowedDaily"] != float64(2000) || details["requestedDeduction"] != float64(2500) || details["averageDailyIncome"] != float64(20000) {
		t.Errorf("details = %v", details)
	}

	rec = s.do(t, call{method: http.MethodPost, path: "/savings/create", as: worker,
		body: map[string]any{"name": "rent", "targetAmount": 50000, "dailyDeductionLimit": 2000}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("within cap: status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestSavings_DepositAndToggle(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 20000)

	rec := s.do(t, call{method: http.MethodPost, path: "/savings/create", as: worker,
		body: map[string]any{"name": "phone", "targetAmount": 5000, "dailyDeductionLimit": 1500}})
	goal := decodeBody[models.SavingsGoal](t, rec)
	base := "/savings/" + goal.ID.String()

	rec = s.do(t, call{method: http.MethodPost, path: base + "/deposit", as: worker, body: map[string]any{"amount": 6000}})
	expectError(t, rec, http.StatusBadRequest, "VALIDATION_FAILED")

	dep := call{method: http.MethodPost, path: base + "/deposit", as: worker, key: "dep-1", body: map[string]any{"amount": 3000}}
	rec = s.do(t, dep)
	if got := decodeBody[models.SavingsGoal](t, rec); rec.Code != http.StatusOK || got.CurrentAmount != 3000 {
		t.Fatalf("deposit: status %d, goal %+v", rec.Code, got)
	}
	if rec := s.do(t, dep); rec.Header().Get(ReplayedHeader) != "true" {
		t.Errorf("deposit retry not replayed: status %d", rec.Code)
	}

	rec = s.do(t, call{method: http.MethodPatch, path: base + "/toggle", as: worker})
	if got := decodeBody[models.SavingsGoal](t, rec); rec.Code != http.StatusOK || got.AutoSaveEnabled {
		t.Fatalf("pause: status %d, goal %+v", rec.Code, got)
	}
	// The paused goal's 1500 no longer counts, so a second goal fits under the 2000 ceiling.
	rec = s.do(t, call{method: http.MethodPost, path: "/savings/create", as: worker,
		body: map[string]any{"name": "rent", "targetAmount": 9000, "dailyDeductionLimit": 1000}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("second goal: status = %d, body %s", rec.Code, rec.Body)
	}
	rec = s.do(t, call{method: http.MethodPatch, path: base + "/toggle", as: worker})
	expectError(t, rec, http.StatusBadRequest, "AFFORDABILITY_CAP_EXCEEDED")

	acc, _ := s.ledger.Balance(context.Background(), worker)
	if acc.AvailableBalance != 17000 {
		t.Errorf("available = %d, want 17000", acc.AvailableBalance)
	}
}

// ---------------------------------------------------------------------------
// Internal
// ---------------------------------------------------------------------------

func TestInternal_EarningsIngestIsIdempotent(t *testing.T) {
	s := newStack(t)
	worker := s.account(t, 0)
	body := map[string]any{"accountId": worker, "amount": 1200, "source": "rides", "idempotencyKey": "trip-9"}

	if rec := s.do(t, call{method: http.MethodPost, path: "/internal/earnings", body: body}); rec.Code != http.StatusCreated {
		t.Fatalf("first: status = %d, body %s", rec.Code, rec.Body)
	}
	rec := s.do(t, call{method: http.MethodPost, path: "/internal/earnings", body: body})
	if rec.Code != http.StatusOK || rec.Header().Get(ReplayedHeader) != "true" {
		t.Fatalf("replay: status = %d", rec.Code)
	}
	acc, _ := s.ledger.Balance(context.Background(), worker)
	if acc.AvailableBalance != 1200 || acc.LifetimeEarned != 1200 {
		t.Errorf("balance = %+v", acc)
	}
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("wrap: %w", ledger.ErrInsufficientFunds), http.StatusConflict, "INSUFFICIENT_FUNDS"},
		{ledger.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{ledger.Transition("job", "open", "confirmed"), http.StatusConflict, "INVALID_STATE_TRANSITION"},
		{escrow.ErrJobAlreadyAssigned, http.StatusConflict, "JOB_ALREADY_ASSIGNED"},
		{&credit.IneligibleError{}, http.StatusForbidden, "INELIGIBLE_FOR_CREDIT"},
		{&savings.CapExceededError{}, http.StatusBadRequest, "AFFORDABILITY_CAP_EXCEEDED"},
		{fmt.Errorf("submit: %w", rail.ErrUnavailable), http.StatusServiceUnavailable, "EXTERNAL_RAIL_UNAVAILABLE"},
		{payout.ErrDailyLimitExceeded, http.StatusBadRequest, "DAILY_LIMIT_EXCEEDED"},
		{escrow.ErrSelfAccept, http.StatusForbidden, "FORBIDDEN"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		status, code := Classify(tc.err)
		if status != tc.status || code != tc.code {
			t.Errorf("Classify(%v) = %d %s, want %d %s", tc.err, status, code, tc.status, tc.code)
		}
	}
}
