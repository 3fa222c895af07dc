package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/validator"
)

// Jobs is the subset of escrow.Coordinator the handler needs.
type Jobs interface {
	Create(ctx context.Context, in escrow.CreateInput) (*models.EscrowJob, error)
	Accept(ctx context.Context, jobID, workerID uuid.UUID) (*models.EscrowJob, error)
	Complete(ctx context.Context, jobID, workerID uuid.UUID) (*models.EscrowJob, error)
	Confirm(ctx context.Context, jobID, posterID uuid.UUID) (*models.EscrowJob, error)
	Cancel(ctx context.Context, jobID, posterID uuid.UUID) (*models.EscrowJob, error)
	Rate(ctx context.Context, in escrow.RateInput) (*models.EscrowJob, error)
	Get(ctx context.Context, jobID uuid.UUID) (*models.EscrowJob, error)
	ListOpen(ctx context.Context, limit int) ([]*models.EscrowJob, error)
	ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.EscrowJob, error)
}

// JobHandler serves /community/jobs endpoints.
type JobHandler struct {
	Jobs      Jobs
	Validator *validator.Validator
	Logger    *slog.Logger
}

type createJobRequest struct {
	Amount      int64  `json:"amount"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type jobStatusResponse struct {
	JobID  uuid.UUID `json:"jobId"`
	Status string    `json:"status"`
}

// Create handles POST /community/jobs.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decode(w, r, h.Validator, validator.JobCreate, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	job, err := h.Jobs.Create(r.Context(), escrow.CreateInput{
		PosterID:       accountID(r),
		Title:          req.Title,
		Description:    req.Description,
		Amount:         req.Amount,
		IdempotencyKey: idempotencyKey(r),
	})
	status := http.StatusCreated
	if replayed(w, err) {
		status = http.StatusOK
	} else if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, status, job)
}

// List handles GET /community/jobs; ?mine=true lists the caller's jobs instead
// of the open board.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		jobs []*models.EscrowJob
		err  error
	)
	if r.URL.Query().Get("mine") == "true" {
		jobs, err = h.Jobs.ListForAccount(r.Context(), accountID(r), limitParam(r))
	} else {
		jobs, err = h.Jobs.ListOpen(r.Context(), limitParam(r))
	}
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// Get handles GET /community/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid job id")
		return
	}
	job, err := h.Jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *JobHandler) Accept(w http.ResponseWriter, r *http.Request)   { h.transition(w, r, h.Jobs.Accept) }
func (h *JobHandler) Complete(w http.ResponseWriter, r *http.Request) { h.transition(w, r, h.Jobs.Complete) }
func (h *JobHandler) Confirm(w http.ResponseWriter, r *http.Request)  { h.transition(w, r, h.Jobs.Confirm) }
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request)   { h.transition(w, r, h.Jobs.Cancel) }

func (h *JobHandler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, jobID, caller uuid.UUID) (*models.EscrowJob, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid job id")
		return
	}
	job, err := fn(r.Context(), id, accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jobStatusResponse{JobID: job.ID, Status: job.Status})
}

type rateJobRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// Rate handles POST /community/jobs/{id}/rate.
func (h *JobHandler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, "invalid job id")
		return
	}
	var req rateJobRequest
	if err := decode(w, r, h.Validator, validator.JobRate, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	job, err := h.Jobs.Rate(r.Context(), escrow.RateInput{JobID: id, RaterID: accountID(r), Rating: req.Rating, Review: req.Review})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}
