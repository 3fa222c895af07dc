package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/validator"
)

// Operator is what the internal routes drive: earnings ingestion, tiers,
// rail callbacks and float top-ups.
type Operator interface {
	ApplyEntry(ctx context.Context, accountID uuid.UUID, kind string, amount int64, related uuid.UUID, key string) (ledger.EntryResult, error)
	SetTier(ctx context.Context, accountID uuid.UUID, tier string) (*models.Account, error)
}

type Settlement interface {
	HandleCallback(ctx context.Context, cb payout.Callback) (*models.PayoutRequest, error)
	Replenish(ctx context.Context, amount int64) (int64, int, error)
}

// Disputes cancels escrow jobs on an operator's decision.
type Disputes interface {
	Dispute(ctx context.Context, jobID uuid.UUID, detail string) (*models.EscrowJob, error)
}

// InternalHandler serves /internal endpoints, guarded by the internal API key.
type InternalHandler struct {
	Ledger    Operator
	Payouts   Settlement
	Jobs      Disputes
	Validator *validator.Validator
	Logger    *slog.Logger
}

type earningRequest struct {
	AccountID      uuid.UUID `json:"accountId"`
	Amount         int64     `json:"amount"`
	Source         string    `json:"source"`
	IdempotencyKey string    `json:"idempotencyKey"`
}

// Earnings handles POST /internal/earnings.
func (h *InternalHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	var req earningRequest
	if err := decode(w, r, h.Validator, validator.EarningIngest, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	res, err := h.Ledger.ApplyEntry(r.Context(), req.AccountID, models.EntryEarning, req.Amount, uuid.Nil, "earning:"+req.IdempotencyKey)
	status := http.StatusCreated
	if replayed(w, err) {
		status = http.StatusOK
	} else if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	h.Logger.Info("earning ingested", "account_id", req.AccountID, "amount", req.Amount, "source", req.Source)
	writeJSON(w, status, res)
}

type callbackRequest struct {
	PayoutID      uuid.UUID `json:"payoutId"`
	RailReference string    `json:"railReference"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
}

// Callback handles POST /internal/payouts/callback from the payout rail.
func (h *InternalHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decode(w, r, h.Validator, validator.PayoutCallback, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	pay, err := h.Payouts.HandleCallback(r.Context(), payout.Callback{
		PayoutID:      req.PayoutID,
		RailReference: req.RailReference,
		Status:        req.Status,
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payoutId": pay.ID, "status": pay.Status})
}

// Replenish handles POST /internal/float/replenish.
func (h *InternalHandler) Replenish(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decode(w, r, h.Validator, validator.Amount, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	available, drained, err := h.Payouts.Replenish(r.Context(), req.Amount)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"floatAvailable": available, "drained": drained})
}

type tierRequest struct {
	AccountID uuid.UUID `json:"accountId"`
	Tier      string    `json:"tier"`
}

// Tier handles POST /internal/accounts/tier.
func (h *InternalHandler) Tier(w http.ResponseWriter, r *http.Request) {
	var req tierRequest
	if err := decode(w, r, h.Validator, validator.TierUpdate, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	acc, err := h.Ledger.SetTier(r.Context(), req.AccountID, req.Tier)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accountId": acc.ID, "subscriptionTier": acc.SubscriptionTier})
}

type disputeRequest struct {
	Reason string `json:"reason"`
}

// CancelJob handles POST /internal/community/jobs/{id}/cancel, the dispute
// path that may refund an assigned job.
func (h *InternalHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid job id")
		return
	}
	var req disputeRequest
	if err := decode(w, r, h.Validator, validator.JobDispute, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	job, err := h.Jobs.Dispute(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{JobID: job.ID, Status: job.Status})
}
