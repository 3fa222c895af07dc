package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gigwallet/backend/internal/models"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccountID string          `json:"accountId"`
	Token     string          `json:"token"`
	Account   *models.Account `json:"account,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"VALIDATION_FAILED", "invalid JSON"})
		return
	}
	acc, token, err := h.svc.Register(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		writeJSON(w, http.StatusConflict, errorBody{"EMAIL_TAKEN", "email already registered"})
		return
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{"VALIDATION_FAILED", err.Error()})
		return
	case err != nil:
		h.log.Error("register failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"INTERNAL", "registration failed"})
		return
	}
	h.log.Info("account registered", "account_id", acc.ID)
	writeJSON(w, http.StatusCreated, TokenResponse{AccountID: acc.ID.String(), Token: token, Account: acc})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{"VALIDATION_FAILED", "invalid JSON"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{"VALIDATION_FAILED", "missing email or password"})
		return
	}
	id, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, errorBody{"UNAUTHORIZED", "invalid credentials"})
		return
	}
	if err != nil {
		h.log.Error("login failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{"INTERNAL", "login failed"})
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{AccountID: id.String(), Token: token})
}
