package testutil

import (
	"context"
	"sync"
	"time"
)

// Sleeper records requested waits and returns immediately.
type Sleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

// Sleep matches the engine's sleep function signature.
func (s *Sleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Waits returns every requested duration in order.
func (s *Sleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}
