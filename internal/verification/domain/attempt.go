package domain

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/contraverify/internal/bridge"
)

// Attempt is one verification run. Starting a new attempt cancels the previous one
// together with its pending status reset.
type Attempt struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	reset *time.Timer
}

type attemptKey struct{}

// AttemptFromContext returns the attempt ctx belongs to, or nil
func AttemptFromContext(ctx context.Context) *Attempt {
	a, _ := ctx.Value(attemptKey{}).(*Attempt)
	return a
}

// Context returns the attempt's context. It is cancelled when a newer attempt starts.
func (a *Attempt) Context() context.Context {
	return a.ctx
}

func (a *Attempt) stopReset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reset != nil {
		a.reset.Stop()
		a.reset = nil
	}
}

// begin starts a new attempt derived from parent and makes it current
func (s *Service) begin(parent context.Context) *Attempt {
	a := &Attempt{ID: uuid.NewString()}
	ctx, cancel := context.WithCancel(parent)
	a.ctx = context.WithValue(ctx, attemptKey{}, a)
	a.cancel = cancel

	s.mu.Lock()
	prev := s.current
	s.current = a
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
		prev.stopReset()
		s.logger.Debug("attempt superseded", "attempt", prev.ID, "by", a.ID)
	}
	return a
}

func (s *Service) isCurrent(a *Attempt) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current == a
}

// Current returns the ID of the latest attempt, or "" when none has started
func (s *Service) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// ScheduleResetStatus emits a "none" status once the reset delay has passed. The reset
// is dropped when a newer attempt starts first. Scheduling again replaces a pending reset.
func (s *Service) ScheduleResetStatus(a *Attempt) {
	if a == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reset != nil {
		a.reset.Stop()
	}
	a.reset = time.AfterFunc(s.opts.StatusResetDelay, func() {
		if !s.isCurrent(a) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.emit(ctx, bridge.Status{Key: StatusNone})
	})
}
