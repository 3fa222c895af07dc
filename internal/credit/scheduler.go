// Package credit issues short-term advances and collects repayments, either
// withheld from payouts or paid manually. An account has at most one active
// loan; the invariant is checked inside the disbursing unit of work and
// backed by a unique index in the store.
package credit

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

type ScoreSource interface {
	Score(ctx context.Context, accountID uuid.UUID) (int, error)
}

type Eligibility struct {
	Eligible       bool       `json:"eligible"`
	Reason         string     `json:"reason,omitempty"`
	Score          int        `json:"score"`
	MaxAmount      int64      `json:"maxAmount"`
	LoansThisMonth int        `json:"loansThisMonth"`
	MonthlyLimit   int        `json:"monthlyLimit"`
	ActiveLoanID   *uuid.UUID `json:"activeLoanId,omitempty"`
}

type Scheduler struct {
	ledger *ledger.Service
	store  store.Store
	scores ScoreSource
	policy Policy
	log    *slog.Logger
}

func NewScheduler(l *ledger.Service, scores ScoreSource, policy Policy, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{ledger: l, store: l.Store(), scores: scores, policy: policy, log: log}
}

var (
	_ payout.LoanPlanner    = (*Scheduler)(nil)
	_ payout.CompletionHook = (*Scheduler)(nil)
)

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Eligibility assesses whether the account may take a new loan now.
func (s *Scheduler) Eligibility(ctx context.Context, accountID uuid.UUID) (*Eligibility, error) {
	score, err := s.scores.Score(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("credit score: %w", err)
	}
	loans, err := s.store.ListLoans(ctx, accountID)
	if err != nil {
		return nil, err
	}
	el := &Eligibility{
		Score:        score,
		MaxAmount:    s.policy.MaxAmount(score),
		MonthlyLimit: s.policy.MonthlyLimit,
	}
	since := monthStart(s.ledger.Now())
	defaulted := false
	for _, l := range loans {
		if !l.CreatedAt.Before(since) {
			el.LoansThisMonth++
		}
		switch l.Status {
		case models.LoanStatusActive:
			id := l.ID
			el.ActiveLoanID = &id
		case models.LoanStatusDefaulted:
			defaulted = true
		}
	}
	switch {
	case el.ActiveLoanID != nil:
		el.Reason = ReasonActiveLoan
	case defaulted:
		el.Reason = ReasonPreviousDefault
	case score < s.policy.MinScore || el.MaxAmount == 0:
		el.Reason = ReasonScoreTooLow
	case el.LoansThisMonth >= s.policy.MonthlyLimit:
		el.Reason = ReasonMonthlyLimit
	default:
		el.Eligible = true
	}
	if !el.Eligible {
		el.MaxAmount = 0
	}
	return el, nil
}

type ApplyInput struct {
	AccountID uuid.UUID
	Principal int64
	// RepaymentRate is the fraction of each payout withheld; nil uses the policy default.
	RepaymentRate  *decimal.Decimal
	IdempotencyKey string
}

// Apply disburses a loan into the account's available balance.
func (s *Scheduler) Apply(ctx context.Context, in ApplyInput) (*models.LoanAccount, error) {
	if in.Principal <= 0 {
		return nil, fmt.Errorf("%w: principal must be positive", ledger.ErrInvalidAmount)
	}
	key := scopedKey("loan", in.AccountID, in.IdempotencyKey)
	if prior, err := s.replay(ctx, key); prior != nil || err != nil {
		return prior, err
	}
	rate := s.policy.DefaultRate
	if in.RepaymentRate != nil {
		rate = *in.RepaymentRate
		if rate.LessThan(s.policy.MinRate) || rate.GreaterThan(s.policy.MaxRate) {
			return nil, fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidRepaymentRate, rate, s.policy.MinRate, s.policy.MaxRate)
		}
	}
	el, err := s.Eligibility(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if el.Reason == ReasonActiveLoan {
		return nil, ErrActiveLoanExists
	}
	if !el.Eligible {
		return nil, &IneligibleError{Eligibility: *el}
	}
	if in.Principal > el.MaxAmount {
		el.Eligible = false
		el.Reason = ReasonAmountAboveLimit
		return nil, &IneligibleError{Eligibility: *el}
	}

	var loan *models.LoanAccount
	id, err := s.ledger.Run(ctx, key, func(ctx context.Context, tx *ledger.Tx) error {
		if _, err := tx.Store().ActiveLoan(ctx, in.AccountID); err == nil {
			return ErrActiveLoanExists
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		fee := fees.Percent(in.Principal, s.policy.FeeRate)
		loan = &models.LoanAccount{
			ID:                 uuid.New(),
			AccountID:          in.AccountID,
			Principal:          in.Principal,
			Fee:                fee,
			TotalRepayable:     in.Principal + fee,
			DailyRepaymentRate: rate,
			Status:             models.LoanStatusActive,
			DueAt:              tx.Now().Add(s.policy.Term),
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: in.AccountID,
			Kind:      models.EntryLoanDisbursement,
			Amount:    in.Principal,
			Related:   loan.ID,
		}); err != nil {
			return err
		}
		tx.InsertLoan(loan)
		tx.SetResult(loan.ID)
		return nil
	})
	switch {
	case errors.Is(err, ledger.ErrDuplicateOperation):
		prior, lookupErr := s.store.GetLoan(ctx, id)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "loan "+id.String())
		}
		return prior, err
	case errors.Is(err, store.ErrUniqueViolation):
		return nil, ErrActiveLoanExists
	case err != nil:
		return nil, err
	}
	s.log.Info("loan disbursed", "account_id", in.AccountID, "loan_id", loan.ID, "principal", loan.Principal)
	return loan, nil
}

// replay returns the loan recorded under key with ErrDuplicateOperation, or
// nil when the key is unused. Apply checks it before eligibility.
func (s *Scheduler) replay(ctx context.Context, key string) (*models.LoanAccount, error) {
	if key == "" {
		return nil, nil
	}
	rec, err := s.store.GetIdempotency(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prior, err := s.store.GetLoan(ctx, rec.EntityID)
	if err != nil {
		return nil, ledger.NotFound(err, "loan "+rec.EntityID.String())
	}
	return prior, fmt.Errorf("%w: %s", ledger.ErrDuplicateOperation, key)
}

// Repay applies a manual repayment from the available balance. Amounts above
// the outstanding balance are refused.
func (s *Scheduler) Repay(ctx context.Context, accountID, loanID uuid.UUID, amount int64, key string) (*models.LoanAccount, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: repayment must be positive", ledger.ErrInvalidAmount)
	}
	var loan *models.LoanAccount
	id, err := s.ledger.Run(ctx, scopedKey("repay", accountID, key), func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		loan, err = tx.Store().GetLoan(ctx, loanID)
		if err != nil || loan.AccountID != accountID {
			return ledger.NotFound(store.ErrNotFound, "loan "+loanID.String())
		}
		if loan.Status != models.LoanStatusActive {
			return ledger.Transition("loan", loan.Status, "repayment")
		}
		if amount > loan.Outstanding() {
			return fmt.Errorf("%w: outstanding is %d", ErrOverpaymentNotAllowed, loan.Outstanding())
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: accountID, Kind: models.EntryLoanRepayment, Amount: -amount, Related: loan.ID,
		}); err != nil {
			return err
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: models.PlatformAccountID, Kind: models.EntryLoanRepayment, Amount: amount, Related: loan.ID,
		}); err != nil {
			return err
		}
		s.credit(loan, amount)
		tx.UpdateLoan(loan)
		tx.SetResult(loan.ID)
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		prior, lookupErr := s.store.GetLoan(ctx, id)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "loan "+id.String())
		}
		return prior, err
	}
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Scheduler) credit(loan *models.LoanAccount, amount int64) {
	loan.AmountRepaid += amount
	if loan.AmountRepaid >= loan.TotalRepayable {
		loan.Status = models.LoanStatusRepaid
	}
}

// PlanDeduction returns min(rate × gross, outstanding) for the active loan.
func (s *Scheduler) PlanDeduction(ctx context.Context, accountID uuid.UUID, gross int64) (payout.Deduction, error) {
	loan, err := s.store.ActiveLoan(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return payout.Deduction{}, nil
	}
	if err != nil {
		return payout.Deduction{}, err
	}
	amount := min(fees.Percent(gross, loan.DailyRepaymentRate), loan.Outstanding())
	return payout.Deduction{LoanID: loan.ID, Amount: amount}, nil
}

// OnPayoutCompleted books the deduction withheld from the payout against the
// loan. Whatever the loan no longer needs goes back to the worker.
func (s *Scheduler) OnPayoutCompleted(ctx context.Context, tx *ledger.Tx, p *models.PayoutRequest, c *payout.Completion) error {
	if p.LoanDeduction == 0 || p.LoanID == nil {
		return nil
	}
	loan, err := tx.Store().GetLoan(ctx, *p.LoanID)
	if err != nil {
		return ledger.NotFound(err, "loan "+p.LoanID.String())
	}
	applied := int64(0)
	if loan.Status == models.LoanStatusActive {
		applied = min(p.LoanDeduction, loan.Outstanding())
	}
	if applied > 0 {
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: models.PlatformAccountID, Kind: models.EntryLoanRepayment, Amount: applied, Related: loan.ID,
		}); err != nil {
			return err
		}
		s.credit(loan, applied)
		tx.UpdateLoan(loan)
	}
	if excess := p.LoanDeduction - applied; excess > 0 {
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: p.AccountID, Kind: models.EntryPayoutReversal, Amount: excess, Related: p.ID,
		}); err != nil {
			return err
		}
	}
	c.LoanRepaid = applied
	return nil
}

// DailyCommitment is the active loan's expected daily deduction given the
// worker's average daily earnings.
func (s *Scheduler) DailyCommitment(ctx context.Context, accountID uuid.UUID, avgDaily int64) (int64, bool, error) {
	loan, err := s.store.ActiveLoan(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return min(fees.Percent(avgDaily, loan.DailyRepaymentRate), loan.Outstanding()), true, nil
}

// MarkDefaults moves active loans past their due date to defaulted.
func (s *Scheduler) MarkDefaults(ctx context.Context) (int, error) {
	now := s.ledger.Now()
	due, err := s.store.ListActiveLoansDueBefore(ctx, now, 500)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range due {
		_, err := s.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
			loan, err := tx.Store().GetLoan(ctx, l.ID)
			if err != nil {
				return err
			}
			if loan.Status != models.LoanStatusActive || !loan.DueAt.Before(tx.Now()) {
				return nil
			}
			loan.Status = models.LoanStatusDefaulted
			tx.UpdateLoan(loan)
			return nil
		})
		if err != nil {
			s.log.Warn("mark loan defaulted failed", "loan_id", l.ID, "err", err)
			continue
		}
		s.log.Info("loan defaulted", "loan_id", l.ID, "account_id", l.AccountID, "outstanding", l.Outstanding())
		n++
	}
	return n, nil
}

func (s *Scheduler) Get(ctx context.Context, accountID, loanID uuid.UUID) (*models.LoanAccount, error) {
	loan, err := s.store.GetLoan(ctx, loanID)
	if err != nil || loan.AccountID != accountID {
		return nil, ledger.NotFound(store.ErrNotFound, "loan "+loanID.String())
	}
	return loan, nil
}

func (s *Scheduler) List(ctx context.Context, accountID uuid.UUID) ([]*models.LoanAccount, error) {
	return s.store.ListLoans(ctx, accountID)
}

// scopedKey namespaces a client idempotency key per operation and account.
func scopedKey(op string, accountID uuid.UUID, key string) string {
	if key == "" {
		return ""
	}
	return op + ":" + accountID.String() + ":" + key
}
