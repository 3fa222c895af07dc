// Package savings moves part of each completed payout into goal-tagged
// sub-balances. Goal creation is refused when the account's daily automatic
// deductions would exceed its affordability ceiling.
package savings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gigwallet/backend/internal/fees"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/store"
)

var (
	ErrAffordabilityCapExceeded = errors.New("savings: affordability cap exceeded")
	ErrInvalidGoal              = errors.New("savings: invalid goal")
)

// Auto-save percentage bounds, in percent of the payout's net amount.
var (
	MinAutoSavePercent = decimal.NewFromInt(1)
	MaxAutoSavePercent = decimal.NewFromInt(30)
)

// CapDetails explains an affordability refusal.
type CapDetails struct {
	CurrentDailyDeductions int64           `json:"currentDailyDeductions"`
	RequestedDeduction     int64           `json:"requestedDeduction"`
	MaxAllowedDaily        int64           `json:"maxAllowedDaily"`
	AverageDailyIncome     int64           `json:"averageDailyIncome"`
	CapPercent             decimal.Decimal `json:"capPercent"`
	HasActiveRepayments    bool            `json:"hasActiveRepayments"`
}

type CapExceededError struct {
	Details CapDetails
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("%v: %d + %d exceeds %d", ErrAffordabilityCapExceeded,
		e.Details.CurrentDailyDeductions, e.Details.RequestedDeduction, e.Details.MaxAllowedDaily)
}

func (e *CapExceededError) Unwrap() error { return ErrAffordabilityCapExceeded }

// Commitments reports the active loan's expected daily deduction.
type Commitments interface {
	DailyCommitment(ctx context.Context, accountID uuid.UUID, avgDaily int64) (int64, bool, error)
}

type Allocator struct {
	ledger      *ledger.Service
	store       store.Store
	commitments Commitments
	// capPercent of average daily earnings bounds all automatic deductions.
	capPercent decimal.Decimal
	log        *slog.Logger
}

func NewAllocator(l *ledger.Service, commitments Commitments, capPercent decimal.Decimal, log *slog.Logger) *Allocator {
	if log == nil {
		log = slog.Default()
	}
	return &Allocator{ledger: l, store: l.Store(), commitments: commitments, capPercent: capPercent, log: log}
}

var _ payout.CompletionHook = (*Allocator)(nil)

func (a *Allocator) ceiling(avgDaily int64) int64 {
	return fees.Percent(avgDaily, a.capPercent.Div(decimal.NewFromInt(100)))
}

// capBudget is what the affordability check needs from outside the unit of work.
type capBudget struct {
	avgDaily  int64
	loanDaily int64
	hasLoan   bool
	ceiling   int64
}

func (a *Allocator) budget(ctx context.Context, accountID uuid.UUID) (capBudget, error) {
	avg, err := a.ledger.AverageDailyEarnings(ctx, accountID)
	if err != nil {
		return capBudget{}, err
	}
	loanDaily, hasLoan, err := a.commitments.DailyCommitment(ctx, accountID, avg)
	if err != nil {
		return capBudget{}, err
	}
	return capBudget{avgDaily: avg, loanDaily: loanDaily, hasLoan: hasLoan, ceiling: a.ceiling(avg)}, nil
}

// checkCap refuses adding another daily deduction when the loan's commitment
// plus every enabled goal's cap would pass the ceiling. It touches the account
// so concurrent checks for the same account are ordered.
func (a *Allocator) checkCap(ctx context.Context, tx *ledger.Tx, accountID uuid.UUID, adding int64, b capBudget) error {
	if err := tx.Touch(ctx, accountID); err != nil {
		return err
	}
	goals, err := tx.Store().ListGoals(ctx, accountID)
	if err != nil {
		return err
	}
	committed := b.loanDaily
	for _, g := range goals {
		if g.AutoSaveEnabled {
			committed += g.DailyDeductionCap
		}
	}
	if committed+adding > b.ceiling {
		return &CapExceededError{Details: CapDetails{
			CurrentDailyDeductions: committed,
			RequestedDeduction:     adding,
			MaxAllowedDaily:        b.ceiling,
			AverageDailyIncome:     b.avgDaily,
			CapPercent:             a.capPercent,
			HasActiveRepayments:    b.hasLoan,
		}}
	}
	return nil
}

type CreateGoalInput struct {
	AccountID         uuid.UUID
	Name              string
	TargetAmount      int64
	AutoSavePercent   decimal.Decimal
	AutoSaveEnabled   bool
	DailyDeductionCap int64
	IdempotencyKey    string
}

// CreateGoal opens a goal after checking it fits the affordability ceiling.
// A refused goal changes nothing.
func (a *Allocator) CreateGoal(ctx context.Context, in CreateGoalInput) (*models.SavingsGoal, error) {
	switch {
	case in.TargetAmount <= 0:
		return nil, fmt.Errorf("%w: target must be positive", ErrInvalidGoal)
	case in.DailyDeductionCap < 0:
		return nil, fmt.Errorf("%w: daily cap must not be negative", ErrInvalidGoal)
	case in.AutoSaveEnabled && (in.AutoSavePercent.LessThan(MinAutoSavePercent) || in.AutoSavePercent.GreaterThan(MaxAutoSavePercent)):
		return nil, fmt.Errorf("%w: auto-save percent must be between %s and %s", ErrInvalidGoal, MinAutoSavePercent, MaxAutoSavePercent)
	}
	budget, err := a.budget(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}

	var goal *models.SavingsGoal
	id, err := a.ledger.Run(ctx, scopedKey("goal", in.AccountID, in.IdempotencyKey), func(ctx context.Context, tx *ledger.Tx) error {
		if err := a.checkCap(ctx, tx, in.AccountID, in.DailyDeductionCap, budget); err != nil {
			return err
		}
		goal = &models.SavingsGoal{
			ID:                uuid.New(),
			AccountID:         in.AccountID,
			Name:              in.Name,
			TargetAmount:      in.TargetAmount,
			AutoSavePercent:   in.AutoSavePercent,
			AutoSaveEnabled:   in.AutoSaveEnabled,
			DailyDeductionCap: in.DailyDeductionCap,
		}
		tx.InsertGoal(goal)
		tx.SetResult(goal.ID)
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		prior, lookupErr := a.store.GetGoal(ctx, id)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "goal "+id.String())
		}
		return prior, err
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (a *Allocator) ListGoals(ctx context.Context, accountID uuid.UUID) ([]*models.SavingsGoal, error) {
	return a.store.ListGoals(ctx, accountID)
}

// Withdraw moves amount from the goal back to the available balance.
func (a *Allocator) Withdraw(ctx context.Context, accountID, goalID uuid.UUID, amount int64, key string) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal must be positive", ledger.ErrInvalidAmount)
	}
	var goal *models.SavingsGoal
	_, err := a.ledger.Run(ctx, scopedKey("goal-withdraw", accountID, key), func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		goal, err = tx.Store().GetGoal(ctx, goalID)
		if err != nil || goal.AccountID != accountID {
			return ledger.NotFound(store.ErrNotFound, "goal "+goalID.String())
		}
		if amount > goal.CurrentAmount {
			return fmt.Errorf("%w: goal holds %d", ledger.ErrInsufficientFunds, goal.CurrentAmount)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: accountID, Kind: models.EntrySavingsWithdrawal, Amount: amount, Related: goal.ID,
		}); err != nil {
			return err
		}
		goal.CurrentAmount -= amount
		tx.UpdateGoal(goal)
		tx.SetResult(goal.ID)
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		prior, lookupErr := a.store.GetGoal(ctx, goalID)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "goal "+goalID.String())
		}
		return prior, err
	}
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// Deposit moves amount from the available balance into the goal. Manual
// deposits are not automatic deductions, so the affordability ceiling does
// not apply; the goal's remaining target does.
func (a *Allocator) Deposit(ctx context.Context, accountID, goalID uuid.UUID, amount int64, key string) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ledger.ErrInvalidAmount)
	}
	var goal *models.SavingsGoal
	_, err := a.ledger.Run(ctx, scopedKey("goal-deposit", accountID, key), func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		goal, err = tx.Store().GetGoal(ctx, goalID)
		if err != nil || goal.AccountID != accountID {
			return ledger.NotFound(store.ErrNotFound, "goal "+goalID.String())
		}
		if remaining := goal.TargetAmount - goal.CurrentAmount; amount > remaining {
			return fmt.Errorf("%w: goal needs %d more", ledger.ErrInvalidAmount, max(remaining, 0))
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: accountID, Kind: models.EntrySavingsAllocation, Amount: -amount, Related: goal.ID,
		}); err != nil {
			return err
		}
		goal.CurrentAmount += amount
		if goal.CurrentAmount >= goal.TargetAmount {
			goal.AutoSaveEnabled = false
		}
		tx.UpdateGoal(goal)
		tx.SetResult(goal.ID)
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		prior, lookupErr := a.store.GetGoal(ctx, goalID)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "goal "+goalID.String())
		}
		return prior, err
	}
	if err != nil {
		return nil, err
	}
	a.log.Info("savings deposit", "account_id", accountID, "goal_id", goalID, "amount", amount)
	return goal, nil
}

// Toggle pauses or resumes auto-save on a goal. Resuming re-runs the
// affordability check; a goal that reached its target cannot be resumed.
func (a *Allocator) Toggle(ctx context.Context, accountID, goalID uuid.UUID) (*models.SavingsGoal, error) {
	b, err := a.budget(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var goal *models.SavingsGoal
	_, err = a.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		goal, err = tx.Store().GetGoal(ctx, goalID)
		if err != nil || goal.AccountID != accountID {
			return ledger.NotFound(store.ErrNotFound, "goal "+goalID.String())
		}
		if goal.AutoSaveEnabled {
			goal.AutoSaveEnabled = false
			tx.UpdateGoal(goal)
			return nil
		}
		if goal.CurrentAmount >= goal.TargetAmount {
			return fmt.Errorf("%w: goal already reached its target", ErrInvalidGoal)
		}
		if err := a.checkCap(ctx, tx, accountID, goal.DailyDeductionCap, b); err != nil {
			return err
		}
		goal.AutoSaveEnabled = true
		tx.UpdateGoal(goal)
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log.Info("auto-save toggled", "account_id", accountID, "goal_id", goalID, "enabled", goal.AutoSaveEnabled)
	return goal, nil
}

// OnPayoutCompleted allocates to each auto-save goal in creation order. The
// loan repayment taken from the same payout comes out of the budget first.
func (a *Allocator) OnPayoutCompleted(ctx context.Context, tx *ledger.Tx, p *models.PayoutRequest, c *payout.Completion) error {
	goals, err := tx.Store().ListGoals(ctx, p.AccountID)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		return nil
	}
	avg, err := a.ledger.AverageDailyEarnings(ctx, p.AccountID)
	if err != nil {
		return err
	}
	budget := max(a.ceiling(avg)-c.LoanRepaid, 0)
	day := tx.Now().Format(time.DateOnly)

	for _, g := range goals {
		if !g.AutoSaveEnabled || budget == 0 {
			continue
		}
		acc, err := tx.Account(ctx, p.AccountID)
		if err != nil {
			return err
		}
		want := fees.Percent(p.NetAmount, g.AutoSavePercent.Div(decimal.NewFromInt(100)))
		amount := min(want, g.DailyDeductionCap-g.SavedOnDay(day), g.TargetAmount-g.CurrentAmount, budget, acc.AvailableBalance)
		if amount <= 0 {
			continue
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: p.AccountID, Kind: models.EntrySavingsAllocation, Amount: -amount, Related: g.ID,
		}); err != nil {
			return err
		}
		g.SavedToday = g.SavedOnDay(day) + amount
		g.SavedOn = day
		g.CurrentAmount += amount
		if g.CurrentAmount >= g.TargetAmount {
			g.AutoSaveEnabled = false
		}
		tx.UpdateGoal(g)
		budget -= amount
		c.Saved += amount
	}
	if c.Saved > 0 {
		a.log.Info("auto-saved from payout", "payout_id", p.ID, "account_id", p.AccountID, "amount", c.Saved)
	}
	return nil
}

func scopedKey(op string, accountID uuid.UUID, key string) string {
	if key == "" {
		return ""
	}
	return op + ":" + accountID.String() + ":" + key
}
