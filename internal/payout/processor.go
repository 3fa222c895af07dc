// Package payout moves money out of worker wallets to the external payment
// rail. Funds are debited before the rail is called and returned by a
// compensating entry when the payout fails; the rail call itself never runs
// inside a unit of work.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/fees"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/liquidity"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/rail"
	"github.com/gigwallet/backend/internal/store"
)

var (
	ErrDailyLimitExceeded = errors.New("payout: daily cashout limit exceeded")
	ErrInvalidRequest     = errors.New("payout: invalid request")
)

const sweepBatch = 200

type Config struct {
	// DailyLimit caps the gross amount an account may cash out per UTC day.
	DailyLimit int64
	// Timeout fails processing payouts the rail has not settled in time.
	Timeout time.Duration
	// QueueTTL fails queued payouts still waiting for float.
	QueueTTL time.Duration
	// SettlementHour is the UTC hour scheduled payouts are released at.
	SettlementHour int
}

type Processor struct {
	ledger     *ledger.Service
	store      store.Store
	gauge      liquidity.Gauge
	rail       rail.Client
	events     events.Publisher
	loans      LoanPlanner
	hooks      []CompletionHook
	dispatcher Dispatcher
	cfg        Config
	log        *slog.Logger
}

func NewProcessor(l *ledger.Service, gauge liquidity.Gauge, rc rail.Client, pub events.Publisher, cfg Config, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		ledger: l,
		store:  l.Store(),
		gauge:  gauge,
		rail:   rc,
		events: pub,
		cfg:    cfg,
		log:    log,
	}
}

// UseLoans makes payouts withhold loan repayments planned by lp.
func (p *Processor) UseLoans(lp LoanPlanner) { p.loans = lp }

// OnComplete appends hooks run when a payout completes.
func (p *Processor) OnComplete(hooks ...CompletionHook) { p.hooks = append(p.hooks, hooks...) }

// SetDispatcher wires the queue processing payouts are handed to.
func (p *Processor) SetDispatcher(d Dispatcher) { p.dispatcher = d }

type InitiateInput struct {
	AccountID      uuid.UUID
	Amount         int64
	Type           string
	IdempotencyKey string
}

type Preview struct {
	Fee            int64 `json:"fee"`
	LoanDeduction  int64 `json:"loanDeduction"`
	NetAmount      int64 `json:"netAmount"`
	FloatAvailable int64 `json:"floatAvailable"`
}

type quote struct {
	fee       int64
	deduction Deduction
	net       int64
}

func (p *Processor) quote(ctx context.Context, accountID uuid.UUID, amount int64, payoutType string) (quote, error) {
	if amount <= 0 {
		return quote{}, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if !fees.ValidType(payoutType) {
		return quote{}, fmt.Errorf("%w: unknown payout type %q", ErrInvalidRequest, payoutType)
	}
	acc, err := p.ledger.Balance(ctx, accountID)
	if err != nil {
		return quote{}, err
	}
	fq, err := fees.Compute(amount, payoutType, acc.IsSubscriber())
	if err != nil {
		return quote{}, err
	}
	q := quote{fee: fq.Fee, net: fq.NetAmount}
	if p.loans != nil {
		q.deduction, err = p.loans.PlanDeduction(ctx, accountID, amount)
		if err != nil {
			return quote{}, fmt.Errorf("plan loan deduction: %w", err)
		}
		q.deduction.Amount = min(q.deduction.Amount, q.net)
		q.net -= q.deduction.Amount
	}
	return q, nil
}

// FeePreview quotes a payout without creating it.
func (p *Processor) FeePreview(ctx context.Context, accountID uuid.UUID, amount int64, payoutType string) (*Preview, error) {
	q, err := p.quote(ctx, accountID, amount, payoutType)
	if err != nil {
		return nil, err
	}
	float, err := p.gauge.Available(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: float gauge: %v", rail.ErrUnavailable, err)
	}
	return &Preview{Fee: q.fee, LoanDeduction: q.deduction.Amount, NetAmount: q.net, FloatAvailable: float}, nil
}

// Initiate creates a payout. Instant and same-day payouts debit the gross
// amount immediately; an instant payout the float cannot cover is queued
// with its funds held. Scheduled payouts wait for the settlement hour.
func (p *Processor) Initiate(ctx context.Context, in InitiateInput) (*models.PayoutRequest, error) {
	key := ""
	if in.IdempotencyKey != "" {
		key = "payout:" + in.AccountID.String() + ":" + in.IdempotencyKey
		if prior, err := p.replay(ctx, key); prior != nil || err != nil {
			return prior, err
		}
	}
	q, err := p.quote(ctx, in.AccountID, in.Amount, in.Type)
	if err != nil {
		return nil, err
	}

	reserved := false
	if in.Type == models.PayoutInstant {
		reserved, err = p.gauge.Reserve(ctx, q.net)
		if err != nil {
			return nil, fmt.Errorf("%w: float gauge: %v", rail.ErrUnavailable, err)
		}
	}

	var pay *models.PayoutRequest
	_, err = p.ledger.Run(ctx, key, func(ctx context.Context, tx *ledger.Tx) error {
		now := tx.Now()
		dayStart := now.Truncate(24 * time.Hour)
		spent, err := tx.Store().PayoutGrossSince(ctx, in.AccountID, dayStart)
		if err != nil {
			return err
		}
		if p.cfg.DailyLimit > 0 && spent+in.Amount > p.cfg.DailyLimit {
			return fmt.Errorf("%w: %d already cashed out today, limit %d", ErrDailyLimitExceeded, spent, p.cfg.DailyLimit)
		}
		pay = &models.PayoutRequest{
			ID:             uuid.New(),
			AccountID:      in.AccountID,
			GrossAmount:    in.Amount,
			Type:           in.Type,
			Fee:            q.fee,
			LoanDeduction:  q.deduction.Amount,
			NetAmount:      q.net,
			FloatReserved:  reserved,
			IdempotencyKey: in.IdempotencyKey,
		}
		if q.deduction.Amount > 0 {
			id := q.deduction.LoanID
			pay.LoanID = &id
		}
		if in.Type == models.PayoutScheduled {
			// Serialize against other payouts on the account for the daily limit.
			if err := tx.Touch(ctx, in.AccountID); err != nil {
				return err
			}
			at := nextSettlement(now, p.cfg.SettlementHour)
			pay.Status = models.PayoutStatusPending
			pay.ScheduledFor = &at
		} else {
			if _, err := tx.Post(ctx, ledger.Posting{
				AccountID: in.AccountID, Kind: models.EntryPayout, Amount: -in.Amount, Related: pay.ID,
			}); err != nil {
				return err
			}
			pay.FundsMoved = true
			pay.Status = models.PayoutStatusProcessing
			pay.ProcessingSince = &now
			if in.Type == models.PayoutInstant && !reserved {
				pay.Status = models.PayoutStatusQueued
				pay.ProcessingSince = nil
			}
		}
		tx.InsertPayout(pay)
		tx.SetResult(pay.ID)
		return nil
	})
	if err != nil {
		if reserved {
			p.release(ctx, q.net)
		}
		if errors.Is(err, ledger.ErrDuplicateOperation) {
			return p.replay(ctx, key)
		}
		return nil, err
	}

	p.log.Info("payout initiated", "payout_id", pay.ID, "account_id", pay.AccountID,
		"type", pay.Type, "gross", pay.GrossAmount, "net", pay.NetAmount, "status", pay.Status)
	p.publish(pay)
	if pay.Status == models.PayoutStatusProcessing {
		p.enqueue(ctx, pay.ID)
	}
	return pay, nil
}

// replay returns the payout recorded under key with ErrDuplicateOperation,
// or nil when the key is unused.
func (p *Processor) replay(ctx context.Context, key string) (*models.PayoutRequest, error) {
	rec, err := p.store.GetIdempotency(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	prior, err := p.store.GetPayout(ctx, rec.EntityID)
	if err != nil {
		return nil, ledger.NotFound(err, "payout "+rec.EntityID.String())
	}
	return prior, fmt.Errorf("%w: %s", ledger.ErrDuplicateOperation, key)
}

// nextSettlement is the first settlement hour strictly after now.
func nextSettlement(now time.Time, hour int) time.Time {
	now = now.UTC()
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !at.After(now) {
		at = at.AddDate(0, 0, 1)
	}
	return at
}

// Dispatch submits a processing payout to the rail. Transient rail errors
// are returned for the caller to retry, unless final is set, in which case
// the payout fails.
func (p *Processor) Dispatch(ctx context.Context, payoutID uuid.UUID, final bool) error {
	pay, err := p.store.GetPayout(ctx, payoutID)
	if err != nil {
		return ledger.NotFound(err, "payout "+payoutID.String())
	}
	if pay.Status != models.PayoutStatusProcessing {
		p.log.Info("skipping dispatch", "payout_id", pay.ID, "status", pay.Status)
		return nil
	}
	receipt, err := p.rail.Submit(ctx, rail.Transfer{
		PayoutID:       pay.ID,
		AccountID:      pay.AccountID,
		Amount:         pay.NetAmount,
		Type:           pay.Type,
		IdempotencyKey: pay.ID.String(),
	})
	switch {
	case errors.Is(err, rail.ErrRejected):
		_, ferr := p.Fail(ctx, pay.ID, err.Error())
		return ignoreTransition(ferr)
	case err != nil && final:
		p.log.Warn("rail retries exhausted", "payout_id", pay.ID, "err", err)
		_, ferr := p.Fail(ctx, pay.ID, "rail unavailable: "+err.Error())
		return ignoreTransition(ferr)
	case err != nil:
		return fmt.Errorf("submit payout %s: %w", pay.ID, err)
	}

	if receipt.Status == rail.StatusCompleted {
		_, err := p.Complete(ctx, pay.ID, receipt.Reference)
		return ignoreTransition(err)
	}
	_, err = p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		cur, err := tx.Store().GetPayout(ctx, pay.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.PayoutStatusProcessing || cur.RailReference == receipt.Reference {
			return nil
		}
		cur.RailReference = receipt.Reference
		tx.UpdatePayout(cur)
		return nil
	})
	return err
}

func ignoreTransition(err error) error {
	if errors.Is(err, ledger.ErrInvalidStateTransition) {
		return nil
	}
	return err
}

// Complete settles a processing payout and runs the completion hooks in the
// same unit of work.
func (p *Processor) Complete(ctx context.Context, payoutID uuid.UUID, reference string) (*models.PayoutRequest, error) {
	var (
		pay  *models.PayoutRequest
		done Completion
	)
	_, err := p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		pay, err = tx.Store().GetPayout(ctx, payoutID)
		if err != nil {
			return ledger.NotFound(err, "payout "+payoutID.String())
		}
		if pay.Status != models.PayoutStatusProcessing {
			return ledger.Transition("payout", pay.Status, models.PayoutStatusCompleted)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: pay.AccountID, Kind: models.EntryPayout, Withdrawn: pay.GrossAmount,
		}); err != nil {
			return err
		}
		if pay.Fee > 0 {
			if _, err := tx.Post(ctx, ledger.Posting{
				AccountID: models.PlatformAccountID, Kind: models.EntryPayoutFee, Amount: pay.Fee, Related: pay.ID,
			}); err != nil {
				return err
			}
		}
		done = Completion{}
		for _, h := range p.hooks {
			if err := h.OnPayoutCompleted(ctx, tx, pay, &done); err != nil {
				return err
			}
		}
		pay.Status = models.PayoutStatusCompleted
		pay.FloatReserved = false
		if reference != "" {
			pay.RailReference = reference
		}
		tx.UpdatePayout(pay)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("payout completed", "payout_id", pay.ID, "account_id", pay.AccountID,
		"net", pay.NetAmount, "loan_repaid", done.LoanRepaid, "saved", done.Saved)
	p.publish(pay)
	return pay, nil
}

// Fail moves a payout that has not completed to failed, returning any held
// funds and float.
func (p *Processor) Fail(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	return p.fail(ctx, payoutID, reason,
		models.PayoutStatusPending, models.PayoutStatusQueued, models.PayoutStatusProcessing)
}

func (p *Processor) fail(ctx context.Context, payoutID uuid.UUID, reason string, from ...string) (*models.PayoutRequest, error) {
	var pay *models.PayoutRequest
	_, err := p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		pay, err = tx.Store().GetPayout(ctx, payoutID)
		if err != nil {
			return ledger.NotFound(err, "payout "+payoutID.String())
		}
		if !slices.Contains(from, pay.Status) {
			return ledger.Transition("payout", pay.Status, models.PayoutStatusFailed)
		}
		if pay.FundsMoved {
			if _, err := tx.Post(ctx, ledger.Posting{
				AccountID: pay.AccountID, Kind: models.EntryPayoutReversal, Amount: pay.GrossAmount, Related: pay.ID,
			}); err != nil {
				return err
			}
			pay.FundsMoved = false
		}
		if pay.FloatReserved {
			amount := pay.NetAmount
			tx.AfterCommit(func() { p.release(ctx, amount) })
			pay.FloatReserved = false
		}
		pay.Status = models.PayoutStatusFailed
		pay.FailureReason = reason
		tx.UpdatePayout(pay)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Warn("payout failed", "payout_id", pay.ID, "account_id", pay.AccountID, "reason", reason)
	p.publish(pay)
	return pay, nil
}

// Reverse books a chargeback on a completed payout, returning the net amount
// to the worker.
func (p *Processor) Reverse(ctx context.Context, payoutID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	var pay *models.PayoutRequest
	_, err := p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		pay, err = tx.Store().GetPayout(ctx, payoutID)
		if err != nil {
			return ledger.NotFound(err, "payout "+payoutID.String())
		}
		if pay.Status != models.PayoutStatusCompleted {
			return ledger.Transition("payout", pay.Status, models.PayoutStatusReversed)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: pay.AccountID, Kind: models.EntryPayoutReversal,
			Amount: pay.NetAmount, Withdrawn: -pay.NetAmount, Related: pay.ID,
		}); err != nil {
			return err
		}
		pay.Status = models.PayoutStatusReversed
		pay.FailureReason = reason
		tx.UpdatePayout(pay)
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.log.Warn("payout reversed", "payout_id", pay.ID, "account_id", pay.AccountID, "reason", reason)
	p.publish(pay)
	return pay, nil
}

type Callback struct {
	PayoutID      uuid.UUID
	RailReference string
	Status        string
	Reason        string
}

// HandleCallback applies a rail status report. Reports for payouts that
// already left the matching state are logged and dropped.
func (p *Processor) HandleCallback(ctx context.Context, cb Callback) (*models.PayoutRequest, error) {
	var (
		pay *models.PayoutRequest
		err error
	)
	if cb.PayoutID != uuid.Nil {
		pay, err = p.store.GetPayout(ctx, cb.PayoutID)
	} else {
		pay, err = p.store.GetPayoutByRailReference(ctx, cb.RailReference)
	}
	if err != nil {
		return nil, ledger.NotFound(err, "payout")
	}

	var result *models.PayoutRequest
	switch cb.Status {
	case models.PayoutStatusCompleted:
		result, err = p.Complete(ctx, pay.ID, cb.RailReference)
	case models.PayoutStatusFailed:
		result, err = p.fail(ctx, pay.ID, cb.Reason, models.PayoutStatusProcessing)
	case models.PayoutStatusReversed:
		result, err = p.Reverse(ctx, pay.ID, cb.Reason)
	default:
		return nil, fmt.Errorf("%w: unknown callback status %q", ErrInvalidRequest, cb.Status)
	}
	if errors.Is(err, ledger.ErrInvalidStateTransition) {
		p.log.Warn("ignoring late rail callback", "payout_id", pay.ID, "status", pay.Status, "reported", cb.Status)
		return p.store.GetPayout(ctx, pay.ID)
	}
	return result, err
}

type SweepResult struct {
	Settled  int `json:"settled"`
	Drained  int `json:"drained"`
	TimedOut int `json:"timedOut"`
	Expired  int `json:"expired"`
}

// Sweep releases due scheduled payouts, drains the float queue and fails
// payouts that waited too long.
func (p *Processor) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := p.ledger.Now()

	pending, err := p.store.ListPayoutsByStatus(ctx, models.PayoutStatusPending, sweepBatch)
	if err != nil {
		return res, err
	}
	for _, pay := range pending {
		if pay.ScheduledFor != nil && pay.ScheduledFor.After(now) {
			continue
		}
		ok, err := p.settle(ctx, pay.ID)
		if err != nil {
			p.log.Warn("settle scheduled payout", "payout_id", pay.ID, "err", err)
			continue
		}
		if ok {
			res.Settled++
		}
	}

	queued, err := p.store.ListPayoutsByStatus(ctx, models.PayoutStatusQueued, sweepBatch)
	if err != nil {
		return res, err
	}
	for _, pay := range queued {
		if p.cfg.QueueTTL > 0 && now.Sub(pay.CreatedAt) > p.cfg.QueueTTL {
			if _, err := p.fail(ctx, pay.ID, "float unavailable", models.PayoutStatusQueued); ignoreTransition(err) != nil {
				p.log.Warn("expire queued payout", "payout_id", pay.ID, "err", err)
			} else if err == nil {
				res.Expired++
			}
		}
	}
	drained, err := p.drain(ctx)
	res.Drained = drained
	if err != nil {
		return res, err
	}

	processing, err := p.store.ListPayoutsByStatus(ctx, models.PayoutStatusProcessing, sweepBatch)
	if err != nil {
		return res, err
	}
	for _, pay := range processing {
		if p.cfg.Timeout <= 0 || pay.ProcessingSince == nil || now.Sub(*pay.ProcessingSince) <= p.cfg.Timeout {
			continue
		}
		if _, err := p.fail(ctx, pay.ID, "rail timeout", models.PayoutStatusProcessing); err != nil {
			if ignoreTransition(err) != nil {
				p.log.Warn("time out payout", "payout_id", pay.ID, "err", err)
			}
			continue
		}
		res.TimedOut++
	}
	return res, nil
}

// settle debits a due scheduled payout and hands it to the rail. A payout
// the balance no longer covers fails.
func (p *Processor) settle(ctx context.Context, payoutID uuid.UUID) (bool, error) {
	var pay *models.PayoutRequest
	_, err := p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		pay, err = tx.Store().GetPayout(ctx, payoutID)
		if err != nil {
			return err
		}
		if pay.Status != models.PayoutStatusPending {
			return ledger.Transition("payout", pay.Status, models.PayoutStatusProcessing)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: pay.AccountID, Kind: models.EntryPayout, Amount: -pay.GrossAmount, Related: pay.ID,
		}); err != nil {
			return err
		}
		now := tx.Now()
		pay.FundsMoved = true
		pay.Status = models.PayoutStatusProcessing
		pay.ProcessingSince = &now
		tx.UpdatePayout(pay)
		return nil
	})
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		_, ferr := p.fail(ctx, payoutID, "insufficient funds at settlement", models.PayoutStatusPending)
		return false, ignoreTransition(ferr)
	}
	if err != nil {
		return false, ignoreTransition(err)
	}
	p.publish(pay)
	p.enqueue(ctx, pay.ID)
	return true, nil
}

// drain promotes queued payouts oldest first while the float covers them.
func (p *Processor) drain(ctx context.Context) (int, error) {
	queued, err := p.store.ListPayoutsByStatus(ctx, models.PayoutStatusQueued, sweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, q := range queued {
		ok, err := p.gauge.Reserve(ctx, q.NetAmount)
		if err != nil {
			return n, fmt.Errorf("%w: float gauge: %v", rail.ErrUnavailable, err)
		}
		if !ok {
			break
		}
		var pay *models.PayoutRequest
		_, err = p.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
			var err error
			pay, err = tx.Store().GetPayout(ctx, q.ID)
			if err != nil {
				return err
			}
			if pay.Status != models.PayoutStatusQueued {
				return ledger.Transition("payout", pay.Status, models.PayoutStatusProcessing)
			}
			now := tx.Now()
			pay.Status = models.PayoutStatusProcessing
			pay.FloatReserved = true
			pay.ProcessingSince = &now
			tx.UpdatePayout(pay)
			return nil
		})
		if err != nil {
			p.release(ctx, q.NetAmount)
			if ignoreTransition(err) != nil {
				p.log.Warn("drain queued payout", "payout_id", q.ID, "err", err)
			}
			continue
		}
		n++
		p.publish(pay)
		p.enqueue(ctx, pay.ID)
	}
	return n, nil
}

// Replenish adds float and promotes whatever queued payouts it now covers.
func (p *Processor) Replenish(ctx context.Context, amount int64) (int64, int, error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	if err := p.gauge.Replenish(ctx, amount); err != nil {
		return 0, 0, fmt.Errorf("%w: float gauge: %v", rail.ErrUnavailable, err)
	}
	drained, err := p.drain(ctx)
	if err != nil {
		return 0, drained, err
	}
	available, err := p.gauge.Available(ctx)
	if err != nil {
		return 0, drained, fmt.Errorf("%w: float gauge: %v", rail.ErrUnavailable, err)
	}
	p.log.Info("float replenished", "amount", amount, "available", available, "drained", drained)
	return available, drained, nil
}

func (p *Processor) Get(ctx context.Context, accountID, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	pay, err := p.store.GetPayout(ctx, payoutID)
	if err != nil || pay.AccountID != accountID {
		return nil, ledger.NotFound(store.ErrNotFound, "payout "+payoutID.String())
	}
	return pay, nil
}

func (p *Processor) List(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.PayoutRequest, error) {
	return p.store.ListPayouts(ctx, accountID, limit)
}

func (p *Processor) enqueue(ctx context.Context, payoutID uuid.UUID) {
	if p.dispatcher == nil {
		return
	}
	if err := p.dispatcher.EnqueueDispatch(ctx, payoutID); err != nil {
		// The timeout sweep fails the payout if it is never dispatched.
		p.log.Error("enqueue payout dispatch", "payout_id", payoutID, "err", err)
	}
}

func (p *Processor) release(ctx context.Context, amount int64) {
	if err := p.gauge.Release(ctx, amount); err != nil {
		p.log.Error("release float", "amount", amount, "err", err)
	}
}

func (p *Processor) publish(pay *models.PayoutRequest) {
	if p.events == nil {
		return
	}
	p.events.Publish(events.Event{
		Type:      events.TypePayoutUpdate,
		AccountID: pay.AccountID,
		PayoutID:  pay.ID,
		Status:    pay.Status,
		At:        pay.UpdatedAt,
	})
}
