package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bsm/redislock"
)

// IdempotencyHeader carries the client's key for a mutating request.
const IdempotencyHeader = "Idempotency-Key"

// ErrLockHeld is returned by a Locker when another holder owns the key.
var ErrLockHeld = errors.New("middleware: lock held")

// Locker hands out short-lived exclusive locks by name.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker implements Locker on top of redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(c *redislock.Client) *RedisLocker { return &RedisLocker{client: c} }

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockHeld
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// Idempotency lets at most one request per (account, Idempotency-Key) run at
// a time across instances. Completed requests are deduplicated by the ledger;
// this only rejects a concurrent duplicate that is still in flight.
// A nil locker disables the guard.
func Idempotency(locker Locker, ttl time.Duration, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if locker == nil || key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			name := "idem:" + AccountIDFromCtx(r.Context()).String() + ":" + key
			release, err := locker.Acquire(r.Context(), name, ttl)
			if errors.Is(err, ErrLockHeld) {
				writeError(w, http.StatusConflict, "CONCURRENT_MODIFICATION", "a request with this idempotency key is in progress")
				return
			}
			if err != nil {
				log.Warn("idempotency lock unavailable; proceeding without it", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			defer func() {
				if err := release(context.WithoutCancel(r.Context())); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
					log.Warn("failed to release idempotency lock", "key", name, "error", err)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
