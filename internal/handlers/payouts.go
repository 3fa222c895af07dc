package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/validator"
)

// Payouts is the subset of payout.Processor the handler needs.
type Payouts interface {
	Initiate(ctx context.Context, in payout.InitiateInput) (*models.PayoutRequest, error)
	FeePreview(ctx context.Context, accountID uuid.UUID, amount int64, payoutType string) (*payout.Preview, error)
	Get(ctx context.Context, accountID, payoutID uuid.UUID) (*models.PayoutRequest, error)
	List(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.PayoutRequest, error)
}

// PayoutHandler serves /payouts endpoints.
type PayoutHandler struct {
	Payouts   Payouts
	Validator *validator.Validator
	Logger    *slog.Logger
}

type initiateRequest struct {
	Amount int64  `json:"amount"`
	Type   string `json:"type"`
}

type initiateResponse struct {
	PayoutID      uuid.UUID  `json:"payoutId"`
	Status        string     `json:"status"`
	NetAmount     int64      `json:"netAmount"`
	Fee           int64      `json:"fee"`
	LoanDeduction int64      `json:"loanDeduction"`
	ScheduledFor  *time.Time `json:"scheduledFor,omitempty"`
}

// Initiate handles POST /payouts/initiate. Completion is pushed over /ws.
func (h *PayoutHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decode(w, r, h.Validator, validator.PayoutInitiate, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	pay, err := h.Payouts.Initiate(r.Context(), payout.InitiateInput{
		AccountID:      accountID(r),
		Amount:         req.Amount,
		Type:           req.Type,
		IdempotencyKey: idempotencyKey(r),
	})
	status := http.StatusAccepted
	if replayed(w, err) {
		status = http.StatusOK
	} else if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, initiateResponse{
		PayoutID:      pay.ID,
		Status:        pay.Status,
		NetAmount:     pay.NetAmount,
		Fee:           pay.Fee,
		LoanDeduction: pay.LoanDeduction,
		ScheduledFor:  pay.ScheduledFor,
	})
}

// FeePreview handles GET /payouts/fee-preview?amount=&type=.
func (h *PayoutHandler) FeePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		badRequest(w, "amount must be a positive integer")
		return
	}
	typ := q.Get("type")
	if typ == "" {
		typ = models.PayoutInstant
	}
	preview, err := h.Payouts.FeePreview(r.Context(), accountID(r), amount, typ)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// List handles GET /payouts.
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.Payouts.List(r.Context(), accountID(r), limitParam(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payouts": list})
}

// Get handles GET /payouts/{id}.
func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid payout id")
		return
	}
	pay, err := h.Payouts.Get(r.Context(), accountID(r), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pay)
}
