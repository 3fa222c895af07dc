package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/validator"
)

// Loans is the subset of credit.Scheduler the handler needs.
type Loans interface {
	Eligibility(ctx context.Context, accountID uuid.UUID) (*credit.Eligibility, error)
	Apply(ctx context.Context, in credit.ApplyInput) (*models.LoanAccount, error)
	Repay(ctx context.Context, accountID, loanID uuid.UUID, amount int64, key string) (*models.LoanAccount, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*models.LoanAccount, error)
}

// LoanHandler serves /loans endpoints.
type LoanHandler struct {
	Loans     Loans
	Validator *validator.Validator
	Logger    *slog.Logger
}

type applyRequest struct {
	Amount        int64            `json:"amount"`
	RepaymentRate *decimal.Decimal `json:"repaymentRate"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

// Eligibility handles GET /loans/eligibility.
func (h *LoanHandler) Eligibility(w http.ResponseWriter, r *http.Request) {
	e, err := h.Loans.Eligibility(r.Context(), accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// Apply handles POST /loans/apply.
func (h *LoanHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decode(w, r, h.Validator, validator.LoanApply, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	loan, err := h.Loans.Apply(r.Context(), credit.ApplyInput{
		AccountID:      accountID(r),
		Principal:      req.Amount,
		RepaymentRate:  req.RepaymentRate,
		IdempotencyKey: idempotencyKey(r),
	})
	status := http.StatusCreated
	if replayed(w, err) {
		status = http.StatusOK
	} else if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, loan)
}

// Repay handles POST /loans/{id}/repay.
func (h *LoanHandler) Repay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid loan id")
		return
	}
	var req amountRequest
	if err := decode(w, r, h.Validator, validator.Amount, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	loan, err := h.Loans.Repay(r.Context(), accountID(r), id, req.Amount, idempotencyKey(r))
	if !replayed(w, err) && err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

// List handles GET /loans.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	loans, err := h.Loans.List(r.Context(), accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": loans})
}
