package rail

import (
	"context"
	"fmt"
	"sync"
)

// StubClient settles every transfer immediately. It is used when no gateway
// is configured and in tests; Fail makes the next n submissions return err.
type StubClient struct {
	mu        sync.Mutex
	failNext  int
	failErr   error
	submitted []Transfer
	// Async makes receipts "accepted" so completion waits for a callback.
	Async bool
}

func NewStubClient() *StubClient {
	return &StubClient{}
}

var _ Client = (*StubClient)(nil)

func (s *StubClient) Fail(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext, s.failErr = n, err
}

func (s *StubClient) Submit(ctx context.Context, t Transfer) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = append(s.submitted, t)
	if s.failNext != 0 {
		if s.failNext > 0 {
			s.failNext--
		}
		return nil, s.failErr
	}
	status := StatusCompleted
	if s.Async {
		status = StatusAccepted
	}
	return &Receipt{Reference: fmt.Sprintf("stub-%s", t.PayoutID), Status: status}, nil
}

// Submitted returns a copy of every transfer seen so far.
func (s *StubClient) Submitted() []Transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transfer(nil), s.submitted...)
}
