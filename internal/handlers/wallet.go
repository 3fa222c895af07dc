package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
)

// Wallet is the read side of the ledger used by WalletHandler.
type Wallet interface {
	Balance(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.LedgerEntry, error)
	Earnings(ctx context.Context, accountID uuid.UUID) (models.EarningsSummary, error)
}

// WalletHandler serves /wallet endpoints.
type WalletHandler struct {
	Wallet Wallet
	Logger *slog.Logger
}

type balanceResponse struct {
	AvailableBalance  int64  `json:"availableBalance"`
	LockedBalance     int64  `json:"lockedBalance"`
	LifetimeEarned    int64  `json:"lifetimeEarned"`
	LifetimeWithdrawn int64  `json:"lifetimeWithdrawn"`
	SubscriptionTier  string `json:"subscriptionTier"`
}

// Balance handles GET /wallet/balance.
func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acc, err := h.Wallet.Balance(r.Context(), accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		AvailableBalance:  acc.AvailableBalance,
		LockedBalance:     acc.LockedBalance,
		LifetimeEarned:    acc.LifetimeEarned,
		LifetimeWithdrawn: acc.LifetimeWithdrawn,
		SubscriptionTier:  acc.SubscriptionTier,
	})
}

// History handles GET /wallet/ledger?limit=.
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Wallet.History(r.Context(), accountID(r), limitParam(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type earningsResponse struct {
	WindowDays   int   `json:"windowDays"`
	Total        int64 `json:"total"`
	ActiveDays   int   `json:"activeDays"`
	AverageDaily int64 `json:"averageDaily"`
}

// Earnings handles GET /wallet/earnings.
func (h *WalletHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Wallet.Earnings(r.Context(), accountID(r))
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, earningsResponse{
		WindowDays:   int(ledger.EarningsWindow.Hours() / 24),
		Total:        sum.Total,
		ActiveDays:   sum.ActiveDays,
		AverageDaily: ledger.AverageDaily(sum),
	})
}
