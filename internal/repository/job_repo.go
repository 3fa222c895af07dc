package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gigwallet/backend/internal/models"
	"github.com/gigwallet/backend/internal/store"
)

const jobColumns = `id, poster_id, worker_id, title, description, escrow_amount, status, cancel_reason,
	worker_rating, worker_review, poster_rating, poster_review, expires_at, version, created_at, updated_at`

func scanJob(row rowScanner) (*models.EscrowJob, error) {
	var j models.EscrowJob
	err := row.Scan(&j.ID, &j.PosterID, &j.WorkerID, &j.Title, &j.Description, &j.EscrowAmount, &j.Status,
		&j.CancelReason, &j.WorkerRating, &j.WorkerReview, &j.PosterRating, &j.PosterReview,
		&j.ExpiresAt, &j.Version, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*models.EscrowJob, error) {
	defer rows.Close()
	var list []*models.EscrowJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, j)
	}
	return list, rows.Err()
}

// writeJob updates are guarded on version; the assign step additionally
// requires the row to still be open with no worker.
func writeJob(ctx context.Context, tx pgx.Tx, w store.Write[*models.EscrowJob]) error {
	j := w.Record
	if w.Insert {
		_, err := tx.Exec(ctx, `
			INSERT INTO escrow_jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`, j.ID, j.PosterID, j.WorkerID, j.Title, j.Description, j.EscrowAmount, j.Status, j.CancelReason,
			j.WorkerRating, j.WorkerReview, j.PosterRating, j.PosterReview,
			j.ExpiresAt, j.Version, j.CreatedAt, j.UpdatedAt)
		return err
	}
	if j.Status == models.JobStatusAssigned {
		return conditional(ctx, tx, `
			UPDATE escrow_jobs SET status = $3, worker_id = $4, version = $5, updated_at = $6
			WHERE id = $1 AND version = $2 AND status = 'open' AND worker_id IS NULL
		`, j.ID, w.ExpectedVersion, j.Status, j.WorkerID, j.Version, j.UpdatedAt)
	}
	return conditional(ctx, tx, `
		UPDATE escrow_jobs SET status = $3, worker_id = $4, cancel_reason = $5,
			worker_rating = $6, worker_review = $7, poster_rating = $8, poster_review = $9,
			version = $10, updated_at = $11
		WHERE id = $1 AND version = $2
	`, j.ID, w.ExpectedVersion, j.Status, j.WorkerID, j.CancelReason,
		j.WorkerRating, j.WorkerReview, j.PosterRating, j.PosterReview, j.Version, j.UpdatedAt)
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*models.EscrowJob, error) {
	return scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM escrow_jobs WHERE id = $1`, id))
}

func (s *Store) ListJobsByStatus(ctx context.Context, status string, limit int) ([]*models.EscrowJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM escrow_jobs WHERE status = $1 ORDER BY created_at LIMIT $2
	`, status, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}

func (s *Store) ListJobsByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*models.EscrowJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM escrow_jobs
		WHERE poster_id = $1 OR worker_id = $1 ORDER BY created_at DESC LIMIT $2
	`, accountID, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	return collectJobs(rows)
}
