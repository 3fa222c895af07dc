package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SavingsGoal struct {
	ID                uuid.UUID       `json:"id"`
	AccountID         uuid.UUID       `json:"accountId"`
	Name              string          `json:"name"`
	TargetAmount      int64           `json:"targetAmount"`
	CurrentAmount     int64           `json:"currentAmount"`
	AutoSavePercent   decimal.Decimal `json:"autoSavePercent"`
	AutoSaveEnabled   bool            `json:"autoSaveEnabled"`
	DailyDeductionCap int64           `json:"dailyDeductionCap"`
	SavedToday        int64           `json:"savedToday"`
	SavedOn           string          `json:"-"` // UTC date (YYYY-MM-DD) SavedToday refers to
	Version           int64           `json:"-"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// SavedOnDay returns how much was auto-saved on the given UTC date.
func (g *SavingsGoal) SavedOnDay(day string) int64 {
	if g.SavedOn != day {
		return 0
	}
	return g.SavedToday
}
