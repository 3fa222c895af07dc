package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/middleware"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/rail"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/validator"
)

// ReplayedHeader is set on the response to a duplicate idempotency key.
const ReplayedHeader = "Idempotent-Replayed"

const (
	maxBodyBytes = 64 << 10
	defaultLimit = 50
	maxLimit     = 200
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type statusCode struct {
	err    error
	status int
	code   string
}

// errorTable is checked in order; the first match wins.
var errorTable = []statusCode{
	{ledger.ErrInsufficientFunds, http.StatusConflict, "INSUFFICIENT_FUNDS"},
	{ledger.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
	{escrow.ErrJobAlreadyAssigned, http.StatusConflict, "JOB_ALREADY_ASSIGNED"},
	{ledger.ErrInvalidStateTransition, http.StatusConflict, "INVALID_STATE_TRANSITION"},
	{credit.ErrActiveLoanExists, http.StatusConflict, "ACTIVE_LOAN_EXISTS"},
	{credit.ErrIneligibleForCredit, http.StatusForbidden, "INELIGIBLE_FOR_CREDIT"},
	{credit.ErrOverpaymentNotAllowed, http.StatusBadRequest, "OVERPAYMENT_NOT_ALLOWED"},
	{savings.ErrAffordabilityCapExceeded, http.StatusBadRequest, "AFFORDABILITY_CAP_EXCEEDED"},
	{rail.ErrUnavailable, http.StatusServiceUnavailable, "EXTERNAL_RAIL_UNAVAILABLE"},
	{payout.ErrDailyLimitExceeded, http.StatusBadRequest, "DAILY_LIMIT_EXCEEDED"},
	{escrow.ErrNotParticipant, http.StatusForbidden, "FORBIDDEN"},
	{escrow.ErrSelfAccept, http.StatusForbidden, "FORBIDDEN"},
	{ledger.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{validator.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "VALIDATION_FAILED"},
	{payout.ErrInvalidRequest, http.StatusBadRequest, "VALIDATION_FAILED"},
	{escrow.ErrInvalidJob, http.StatusBadRequest, "VALIDATION_FAILED"},
	{escrow.ErrInvalidRating, http.StatusBadRequest, "VALIDATION_FAILED"},
	{credit.ErrInvalidRepaymentRate, http.StatusBadRequest, "VALIDATION_FAILED"},
	{savings.ErrInvalidGoal, http.StatusBadRequest, "VALIDATION_FAILED"},
}

// Classify maps a domain error to its HTTP status and error code.
func Classify(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with its mapped status. Unmapped errors are logged
// and their text is withheld from the client.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status, code := Classify(err)
	body := ErrorResponse{Error: code, Message: err.Error()}
	var capErr *savings.CapExceededError
	var inelErr *credit.IneligibleError
	switch {
	case errors.As(err, &capErr):
		body.Details = capErr.Details
	case errors.As(err, &inelErr):
		body.Details = inelErr.Eligibility
	}
	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "VALIDATION_FAILED", Message: msg})
}

// replayed reports whether err marks a duplicate idempotency key and, if so,
// flags the response.
func replayed(w http.ResponseWriter, err error) bool {
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		w.Header().Set(ReplayedHeader, "true")
		return true
	}
	return false
}

// decode reads the body and validates it against the named schema.
func decode(w http.ResponseWriter, r *http.Request, v *validator.Validator, schema string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errors.Join(validator.ErrValidation, err)
	}
	return v.Decode(schema, body, dst)
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	return min(n, maxLimit)
}

func accountID(r *http.Request) uuid.UUID {
	return middleware.AccountIDFromCtx(r.Context())
}

func idempotencyKey(r *http.Request) string {
	return r.Header.Get(middleware.IdempotencyHeader)
}
