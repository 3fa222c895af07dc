package execution

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"

	"github.com/gigwallet/backend/internal/payout"
)

var errQueueNotBound = errors.New("execution: queue not bound to a river client")

// Inserter is the subset of *river.Client the queue uses.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Queue hands payouts to the dispatch worker. It is bound to the River client
// after the client is built, since the client's workers need the processor
// that uses the queue.
type Queue struct {
	mu          sync.RWMutex
	ins         Inserter
	maxAttempts int
}

func NewQueue(maxAttempts int) *Queue {
	return &Queue{maxAttempts: maxAttempts}
}

var _ payout.Dispatcher = (*Queue)(nil)

func (q *Queue) Bind(ins Inserter) {
	q.mu.Lock()
	q.ins = ins
	q.mu.Unlock()
}

func (q *Queue) EnqueueDispatch(ctx context.Context, payoutID uuid.UUID) error {
	q.mu.RLock()
	ins := q.ins
	q.mu.RUnlock()
	if ins == nil {
		return errQueueNotBound
	}
	_, err := ins.Insert(ctx, PayoutDispatchArgs{PayoutID: payoutID}, &river.InsertOpts{
		MaxAttempts: q.maxAttempts,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	})
	return err
}
