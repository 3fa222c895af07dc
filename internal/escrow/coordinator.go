// Package escrow holds a poster's funds against a community job until the
// poster confirms the work. Job transitions are conditional on the job's
// version, so exactly one accept and one confirm or cancel can win.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

var (
	ErrJobAlreadyAssigned = errors.New("escrow: job already assigned")
	ErrNotParticipant     = errors.New("escrow: caller is not a participant of the job")
	ErrSelfAccept         = errors.New("escrow: poster cannot accept own job")
	ErrInvalidJob         = errors.New("escrow: invalid job")
	ErrInvalidRating      = errors.New("escrow: invalid rating")
)

// Cancellation reasons.
const (
	ReasonPosterCancelled = "cancelled_by_poster"
	ReasonExpired         = "expired"
	ReasonDisputed        = "disputed"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Config struct {
	MinAmount int64
	// TTL is how long a job may stay open before the expiry sweep cancels it.
	TTL time.Duration
}

type Coordinator struct {
	ledger *ledger.Service
	store  store.Store
	cfg    Config
	log    *slog.Logger
}

func NewCoordinator(l *ledger.Service, cfg Config, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{ledger: l, store: l.Store(), cfg: cfg, log: log}
}

type CreateInput struct {
	PosterID       uuid.UUID
	Title          string
	Description    string
	Amount         int64
	IdempotencyKey string
}

// Create posts a job and locks its amount from the poster's available balance.
func (c *Coordinator) Create(ctx context.Context, in CreateInput) (*models.EscrowJob, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidJob)
	case in.Amount <= 0 || in.Amount < c.cfg.MinAmount:
		return nil, fmt.Errorf("%w: amount must be at least %d", ErrInvalidJob, max(c.cfg.MinAmount, 1))
	}
	key := ""
	if in.IdempotencyKey != "" {
		key = "job:" + in.PosterID.String() + ":" + in.IdempotencyKey
	}
	var job *models.EscrowJob
	id, err := c.ledger.Run(ctx, key, func(ctx context.Context, tx *ledger.Tx) error {
		job = &models.EscrowJob{
			ID:           uuid.New(),
			PosterID:     in.PosterID,
			Title:        title,
			Description:  in.Description,
			EscrowAmount: in.Amount,
			Status:       models.JobStatusOpen,
		}
		if c.cfg.TTL > 0 {
			job.ExpiresAt = tx.Now().Add(c.cfg.TTL)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: in.PosterID, Kind: models.EntryEscrowLock,
			Amount: -in.Amount, Locked: in.Amount, Related: job.ID,
		}); err != nil {
			return err
		}
		tx.InsertJob(job)
		tx.SetResult(job.ID)
		return nil
	})
	if errors.Is(err, ledger.ErrDuplicateOperation) {
		prior, lookupErr := c.store.GetJob(ctx, id)
		if lookupErr != nil {
			return nil, ledger.NotFound(lookupErr, "job "+id.String())
		}
		return prior, err
	}
	if err != nil {
		return nil, err
	}
	c.log.Info("escrow job posted", "job_id", job.ID, "poster_id", job.PosterID, "amount", job.EscrowAmount)
	return job, nil
}

// transition re-reads the job on every attempt and applies fn to it.
func (c *Coordinator) transition(ctx context.Context, jobID uuid.UUID, fn func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error) (*models.EscrowJob, error) {
	var job *models.EscrowJob
	_, err := c.ledger.Run(ctx, "", func(ctx context.Context, tx *ledger.Tx) error {
		var err error
		job, err = tx.Store().GetJob(ctx, jobID)
		if err != nil {
			return ledger.NotFound(err, "job "+jobID.String())
		}
		if err := fn(ctx, tx, job); err != nil {
			return err
		}
		tx.UpdateJob(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Accept assigns an open job to the worker. Only one concurrent accepter wins;
// the rest get ErrJobAlreadyAssigned.
func (c *Coordinator) Accept(ctx context.Context, jobID, workerID uuid.UUID) (*models.EscrowJob, error) {
	job, err := c.transition(ctx, jobID, func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error {
		if job.PosterID == workerID {
			return ErrSelfAccept
		}
		switch {
		case job.Status == models.JobStatusOpen && job.WorkerID == nil:
		case job.Status == models.JobStatusCancelled:
			return ledger.Transition("job", job.Status, models.JobStatusAssigned)
		default:
			return ErrJobAlreadyAssigned
		}
		if _, err := tx.Store().GetAccount(ctx, workerID); err != nil {
			return ledger.NotFound(err, "account "+workerID.String())
		}
		w := workerID
		job.WorkerID = &w
		job.Status = models.JobStatusAssigned
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("escrow job accepted", "job_id", job.ID, "worker_id", workerID)
	return job, nil
}

// Complete marks the work done. Only the assigned worker may do so.
func (c *Coordinator) Complete(ctx context.Context, jobID, workerID uuid.UUID) (*models.EscrowJob, error) {
	return c.transition(ctx, jobID, func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error {
		if job.WorkerID == nil || *job.WorkerID != workerID {
			return ErrNotParticipant
		}
		if job.Status != models.JobStatusAssigned {
			return ledger.Transition("job", job.Status, models.JobStatusCompleted)
		}
		job.Status = models.JobStatusCompleted
		return nil
	})
}

// Confirm releases the locked amount to the worker. Only the poster may confirm.
func (c *Coordinator) Confirm(ctx context.Context, jobID, posterID uuid.UUID) (*models.EscrowJob, error) {
	job, err := c.transition(ctx, jobID, func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error {
		if job.PosterID != posterID {
			return ErrNotParticipant
		}
		if job.Status != models.JobStatusCompleted {
			return ledger.Transition("job", job.Status, models.JobStatusConfirmed)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: job.PosterID, Kind: models.EntryEscrowRelease, Locked: -job.EscrowAmount, Related: job.ID,
		}); err != nil {
			return err
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: *job.WorkerID, Kind: models.EntryEscrowRelease,
			Amount: job.EscrowAmount, Earned: job.EscrowAmount, Related: job.ID,
		}); err != nil {
			return err
		}
		job.Status = models.JobStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("escrow released", "job_id", job.ID, "worker_id", *job.WorkerID, "amount", job.EscrowAmount)
	return job, nil
}

// Cancel refunds the lock to the poster. Only the poster may cancel, and
// only while nobody has accepted the job.
func (c *Coordinator) Cancel(ctx context.Context, jobID, posterID uuid.UUID) (*models.EscrowJob, error) {
	return c.cancel(ctx, jobID, func(job *models.EscrowJob) error {
		if job.PosterID != posterID {
			return ErrNotParticipant
		}
		return nil
	}, ReasonPosterCancelled, models.JobStatusOpen)
}

// Dispute cancels an open or assigned job on an operator's decision and
// refunds the poster. Completed jobs are settled by confirmation only.
func (c *Coordinator) Dispute(ctx context.Context, jobID uuid.UUID, detail string) (*models.EscrowJob, error) {
	reason := ReasonDisputed
	if detail = strings.TrimSpace(detail); detail != "" {
		reason += ": " + detail
	}
	return c.cancel(ctx, jobID, func(*models.EscrowJob) error { return nil },
		reason, models.JobStatusOpen, models.JobStatusAssigned)
}

func (c *Coordinator) cancel(ctx context.Context, jobID uuid.UUID, check func(*models.EscrowJob) error, reason string, from ...string) (*models.EscrowJob, error) {
	job, err := c.transition(ctx, jobID, func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error {
		if err := check(job); err != nil {
			return err
		}
		if !slices.Contains(from, job.Status) {
			return ledger.Transition("job", job.Status, models.JobStatusCancelled)
		}
		if _, err := tx.Post(ctx, ledger.Posting{
			AccountID: job.PosterID, Kind: models.EntryEscrowRefund,
			Amount: job.EscrowAmount, Locked: -job.EscrowAmount, Related: job.ID,
		}); err != nil {
			return err
		}
		job.Status = models.JobStatusCancelled
		job.CancelReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("escrow refunded", "job_id", job.ID, "poster_id", job.PosterID, "reason", reason)
	return job, nil
}

type RateInput struct {
	JobID   uuid.UUID
	RaterID uuid.UUID
	Rating  int
	Review  string
}

// Rate records one participant's rating of the other on a confirmed job.
// The poster rates the worker and the worker rates the poster; rating again
// replaces the earlier score.
func (c *Coordinator) Rate(ctx context.Context, in RateInput) (*models.EscrowJob, error) {
	if in.Rating < MinRating || in.Rating > MaxRating {
		return nil, fmt.Errorf("%w: rating must be between %d and %d", ErrInvalidRating, MinRating, MaxRating)
	}
	review := strings.TrimSpace(in.Review)
	job, err := c.transition(ctx, in.JobID, func(ctx context.Context, tx *ledger.Tx, job *models.EscrowJob) error {
		if job.Status != models.JobStatusConfirmed {
			return ledger.Transition("job", job.Status, "rated")
		}
		switch {
		case job.PosterID == in.RaterID:
			job.WorkerRating, job.WorkerReview = in.Rating, review
		case job.WorkerID != nil && *job.WorkerID == in.RaterID:
			job.PosterRating, job.PosterReview = in.Rating, review
		default:
			return ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("escrow job rated", "job_id", job.ID, "rater_id", in.RaterID, "rating", in.Rating)
	return job, nil
}

// ExpireOpen cancels open jobs whose expiry has passed and returns how many
// it cancelled. Jobs accepted meanwhile are left alone.
func (c *Coordinator) ExpireOpen(ctx context.Context) (int, error) {
	now := c.ledger.Now()
	open, err := c.store.ListJobsByStatus(ctx, models.JobStatusOpen, 500)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, j := range open {
		if j.ExpiresAt.IsZero() || j.ExpiresAt.After(now) {
			continue
		}
		_, err := c.cancel(ctx, j.ID, func(*models.EscrowJob) error { return nil }, ReasonExpired, models.JobStatusOpen)
		if errors.Is(err, ledger.ErrInvalidStateTransition) {
			continue
		}
		if err != nil {
			c.log.Warn("expire escrow job", "job_id", j.ID, "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func (c *Coordinator) Get(ctx context.Context, jobID uuid.UUID) (*models.EscrowJob, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, ledger.NotFound(err, "job "+jobID.String())
	}
	return job, nil
}

// ListOpen returns jobs available to accept, oldest first.
func (c *Coordinator) ListOpen(ctx context.Context, limit int) ([]*models.EscrowJob, error) {
	return c.store.ListJobsByStatus(ctx, models.JobStatusOpen, limit)
}

// ListForAccount returns jobs the account posted or works on.
func (c *Coordinator) ListForAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.EscrowJob, error) {
	return c.store.ListJobsByAccount(ctx, accountID, limit)
}
