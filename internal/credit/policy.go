package credit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier caps the principal available at or above a score.
type Tier struct {
	MinScore  int
	MaxAmount int64
}

type Policy struct {
	MinScore int
	// Tiers ordered by descending MinScore.
	Tiers        []Tier
	MonthlyLimit int
	FeeRate      decimal.Decimal
	DefaultRate  decimal.Decimal
	MinRate      decimal.Decimal
	MaxRate      decimal.Decimal
	Term         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MinScore: 400,
		Tiers: []Tier{
			{MinScore: 500, MaxAmount: 150000},
			{MinScore: 400, MaxAmount: 100000},
			{MinScore: 300, MaxAmount: 50000},
		},
		MonthlyLimit: 3,
		FeeRate:      decimal.RequireFromString("0.03"),
		DefaultRate:  decimal.RequireFromString("0.20"),
		MinRate:      decimal.RequireFromString("0.05"),
		MaxRate:      decimal.RequireFromString("0.20"),
		Term:         7 * 24 * time.Hour,
	}
}

// MaxAmount is the largest principal the score qualifies for.
func (p Policy) MaxAmount(score int) int64 {
	for _, t := range p.Tiers {
		if score >= t.MinScore {
			return t.MaxAmount
		}
	}
	return 0
}
