package models

import (
	"time"

	"github.com/google/uuid"
)

// Escrow job statuses.
const (
	JobStatusOpen      = "open"
	JobStatusAssigned  = "assigned"
	JobStatusCompleted = "completed"
	JobStatusConfirmed = "confirmed"
	JobStatusCancelled = "cancelled"
)

type EscrowJob struct {
	ID           uuid.UUID  `json:"id"`
	PosterID     uuid.UUID  `json:"posterId"`
	WorkerID     *uuid.UUID `json:"workerId,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	EscrowAmount int64      `json:"escrowAmount"`
	Status       string     `json:"status"`
	CancelReason string     `json:"cancelReason,omitempty"`

	// WorkerRating is the poster's score for the worker, PosterRating the
	// worker's score for the poster; zero means not rated.
	WorkerRating int    `json:"workerRating,omitempty"`
	WorkerReview string `json:"workerReview,omitempty"`
	PosterRating int    `json:"posterRating,omitempty"`
	PosterReview string `json:"posterReview,omitempty"`

	ExpiresAt time.Time `json:"expiresAt"`
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
