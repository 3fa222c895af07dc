package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/validator"
)

// Goals is the subset of savings.Allocator the handler needs.
type Goals interface {
	CreateGoal(ctx context.Context, in savings.CreateGoalInput) (*models.SavingsGoal, error)
	ListGoals(ctx context.Context, accountID uuid.UUID) ([]*models.SavingsGoal, error)
	Withdraw(ctx context.Context, accountID, goalID uuid.UUID, amount int64, key string) (*models.SavingsGoal, error)
	Deposit(ctx context.Context, accountID, goalID uuid.UUID, amount int64, key string) (*models.SavingsGoal, error)
	Toggle(ctx context.Context, accountID, goalID uuid.UUID) (*models.SavingsGoal, error)
}

// SavingsHandler serves /savings endpoints.
type SavingsHandler struct {
	Goals     Goals
	Validator *validator.Validator
	Logger    *slog.Logger
}

type createGoalRequest struct {
	Name                string           `json:"name"`
	TargetAmount        int64            `json:"targetAmount"`
	DailyDeductionLimit int64            `json:"dailyDeductionLimit"`
	AutoSavePercent     *decimal.Decimal `json:"autoSavePercent"`
	AutoSaveEnabled     *bool            `json:"autoSaveEnabled"`
}

var defaultAutoSavePercent = decimal.NewFromInt(10)

// Create handles POST /savings/create. An affordability refusal carries the
// cap breakdown in details.
func (h *SavingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decode(w, r, h.Validator, validator.GoalCreate, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	in := savings.CreateGoalInput{
		AccountID:         accountID(r),
		Name:              req.Name,
		TargetAmount:      req.TargetAmount,
		AutoSavePercent:   defaultAutoSavePercent,
		AutoSaveEnabled:   true,
		DailyDeductionCap: req.DailyDeductionLimit,
		IdempotencyKey:    idempotencyKey(r),
	}
	if req.AutoSavePercent != nil {
		in.AutoSavePercent = *req.AutoSavePercent
	}
	if req.AutoSaveEnabled != nil {
		in.AutoSaveEnabled = *req.AutoSaveEnabled
	}
	goal, err := h.Goals.CreateGoal(r.Context(), in)
	status := http.StatusCreated
	if replayed(w, err) {
		status = http.StatusOK
	} else if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, goal)
}

// List handles GET /savings.
func (h *SavingsHandler) List(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Goals.ListGoals(r.Context(), accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"goals": goals})
}

// Withdraw handles POST /savings/{id}/withdraw.
func (h *SavingsHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Goals.Withdraw)
}

// Deposit handles POST /savings/{id}/deposit.
func (h *SavingsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.Goals.Deposit)
}

func (h *SavingsHandler) move(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID, goalID uuid.UUID, amount int64, key string) (*models.SavingsGoal, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid goal id")
		return
	}
	var req amountRequest
	if err := decode(w, r, h.Validator, validator.Amount, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	goal, err := fn(r.Context(), accountID(r), id, req.Amount, idempotencyKey(r))
	if !replayed(w, err) && err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// Toggle handles PATCH /savings/{id}/toggle, pausing or resuming auto-save.
func (h *SavingsHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid goal id")
		return
	}
	goal, err := h.Goals.Toggle(r.Context(), accountID(r), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
