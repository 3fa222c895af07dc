package router

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/auth"
	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/gigscore"
	"github.com/gigwallet/backend/internal/handlers"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/liquidity"
	"github.com/gigwallet/backend/internal/metrics"
	"github.com/gigwallet/backend/internal/middleware"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/rail"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/store/memory"
	"github.com/gigwallet/backend/internal/validator"
)

const internalKey = "internal-test-key"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	log := slog.New(slog.DiscardHandler)
	l := ledger.NewService(memory.New())
	if err := l.EnsurePlatformAccount(context.Background()); err != nil {
		t.Fatalf("EnsurePlatformAccount: %v", err)
	}
	v, err := validator.New()
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	authSvc := auth.NewService(auth.NewMemoryRepository(l), "router-secret")
	sched := credit.NewScheduler(l, gigscore.Static(600), credit.DefaultPolicy(), log)
	alloc := savings.NewAllocator(l, sched, decimal.NewFromInt(10), log)
	bus := events.NewBus(8, log)
	proc := payout.NewProcessor(l, liquidity.NewMemoryGauge(0), rail.NewStubClient(), bus, payout.Config{
		DailyLimit: 5_000_000, Timeout: 15 * time.Minute, QueueTTL: 6 * time.Hour, SettlementHour: 4,
	}, log)
	proc.UseLoans(sched)
	proc.OnComplete(sched, alloc)
	jobs := escrow.NewCoordinator(l, escrow.Config{MinAmount: 100, TTL: time.Hour}, log)
	m := metrics.New()

	return New(Handlers{
		Auth:     auth.NewHandler(authSvc, log),
		Wallet:   &handlers.WalletHandler{Wallet: l, Logger: log},
		Payouts:  &handlers.PayoutHandler{Payouts: proc, Validator: v, Logger: log},
		Jobs:     &handlers.JobHandler{Jobs: jobs, Validator: v, Logger: log},
		Loans:    &handlers.LoanHandler{Loans: sched, Validator: v, Logger: log},
		Savings:  &handlers.SavingsHandler{Goals: alloc, Validator: v, Logger: log},
		Internal: &handlers.InternalHandler{Ledger: l, Payouts: proc, Jobs: jobs, Validator: v, Logger: log},
		Metrics:  m.Handler(),
	}, Guards{
		Authenticate: middleware.BearerAuth(authSvc),
		Internal:     middleware.InternalAPIKey(internalKey),
		Observe:      m.Middleware,
	})
}

func send(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RegisterEarnAndQueueInstantPayout(t *testing.T) {
	h := newTestRouter(t)

	rec := send(t, h, http.MethodPost, "/auth/register", map[string]string{"email": "rider@example.com", "password": "correct-horse"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rec.Code, rec.Body)
	}
	var reg auth.TokenResponse
	_ = json.NewDecoder(rec.Body).Decode(&reg)
	bearer := map[string]string{"Authorization": "Bearer " + reg.Token}

	rec = send(t, h, http.MethodPost, "/internal/earnings",
		map[string]any{"accountId": reg.AccountID, "amount": 20000, "idempotencyKey": "shift-1"},
		map[string]string{"X-API-Key": internalKey})
	if rec.Code != http.StatusCreated {
		t.Fatalf("earnings: %d %s", rec.Code, rec.Body)
	}

	// The float starts empty, so an instant payout waits in the queue.
	rec = send(t, h, http.MethodPost, "/payouts/initiate", map[string]any{"amount": 10000, "type": "instant"}, bearer)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("initiate: %d %s", rec.Code, rec.Body)
	}
	var created struct {
		PayoutID uuid.UUID `json:"payoutId"`
		Status   string    `json:"status"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&created)
	if created.Status != "queued" {
		t.Errorf("status = %q, want queued", created.Status)
	}

	rec = send(t, h, http.MethodPost, "/internal/float/replenish", map[string]any{"amount": 50000}, map[string]string{"X-API-Key": internalKey})
	var topUp struct {
		Drained int `json:"drained"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&topUp)
	if rec.Code != http.StatusOK || topUp.Drained != 1 {
		t.Fatalf("replenish: %d drained=%d", rec.Code, topUp.Drained)
	}

	rec = send(t, h, http.MethodGet, "/payouts/"+created.PayoutID.String(), nil, bearer)
	var got struct {
		Status string `json:"status"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.Status != "processing" {
		t.Errorf("after replenish status = %q, want processing", got.Status)
	}
}

func TestRouter_Guards(t *testing.T) {
	h := newTestRouter(t)

	if rec := send(t, h, http.MethodGet, "/wallet/balance", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
	if rec := send(t, h, http.MethodPost, "/internal/float/replenish", map[string]any{"amount": 1}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no api key: %d", rec.Code)
	}
	if rec := send(t, h, http.MethodPost, "/internal/community/jobs/"+uuid.NewString()+"/cancel", map[string]any{"reason": "x"}, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("dispute without api key: %d", rec.Code)
	}
	if rec := send(t, h, http.MethodPatch, "/savings/"+uuid.NewString()+"/toggle", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("toggle without token: %d", rec.Code)
	}
	if rec := send(t, h, http.MethodDelete, "/wallet/balance", nil, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: %d", rec.Code)
	}
	if rec := send(t, h, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	rec := send(t, h, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte("http_requests_total")) {
		t.Errorf("metrics: %d", rec.Code)
	}
}
