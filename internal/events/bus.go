// Package events is an in-process publish/subscribe channel keyed by account
// id. Transports (WebSocket, polling) subscribe; the payout processor publishes.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const TypePayoutUpdate = "payout_update"

type Event struct {
	Type      string    `json:"type"`
	AccountID uuid.UUID `json:"-"`
	PayoutID  uuid.UUID `json:"payoutId"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

type Publisher interface {
	Publish(e Event)
}

type subscriber struct {
	ch chan Event
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*subscriber]struct{}
	buffer int
	log    *slog.Logger
}

func NewBus(buffer int, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{subs: make(map[uuid.UUID]map[*subscriber]struct{}), buffer: buffer, log: log}
}

var _ Publisher = (*Bus)(nil)

// Subscribe returns a channel of the account's events and a func that
// unsubscribes and closes the channel.
func (b *Bus) Subscribe(accountID uuid.UUID) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	if b.subs[accountID] == nil {
		b.subs[accountID] = make(map[*subscriber]struct{})
	}
	b.subs[accountID][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[accountID], s)
			if len(b.subs[accountID]) == 0 {
				delete(b.subs, accountID)
			}
			b.mu.Unlock()
			close(s.ch)
		})
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs[e.AccountID] {
		select {
		case s.ch <- e:
		default:
			b.log.Warn("dropping event for slow subscriber", "account_id", e.AccountID, "payout_id", e.PayoutID)
		}
	}
}

// Subscribers reports how many subscriptions the account has.
func (b *Bus) Subscribers(accountID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[accountID])
}
