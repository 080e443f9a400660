package cache

import (
	"context"
	"sync"
	"time"

	"github.com/commercelab/settlement/internal/settlement/domain"
	"github.com/commercelab/settlement/internal/settlement/ports"
)

// In-process SplitLocker for local development and tests, paired with the
// redis implementation the same way the real and fake adapters are elsewhere.
// Correct only within a single process.
type memorySplitLocker struct {
	mu      sync.Mutex
	held    map[string]chan struct{}
	maxWait time.Duration
}

var _ ports.SplitLocker = (*memorySplitLocker)(nil)

// NewMemorySplitLocker returns a single-process SplitLocker with the same
// bounded-wait contract as the redis one.
func NewMemorySplitLocker() ports.SplitLocker {
	return &memorySplitLocker{
		held:    make(map[string]chan struct{}),
		maxWait: 3 * time.Second,
	}
}

func (l *memorySplitLocker) Acquire(ctx context.Context, orderItemID string) (func(ctx context.Context) error, error) {
	timeout := time.NewTimer(l.maxWait)
	defer timeout.Stop()

	for {
		l.mu.Lock()
		waiter, taken := l.held[orderItemID]
		if !taken {
			done := make(chan struct{})
			l.held[orderItemID] = done
			l.mu.Unlock()

			release := func(ctx context.Context) error {
				l.mu.Lock()
				delete(l.held, orderItemID)
				l.mu.Unlock()
				close(done)
				return nil
			}
			return release, nil
		}
		l.mu.Unlock()

		select {
		case <-waiter:
			// Holder released; try again.
		case <-timeout.C:
			return nil, domain.E(domain.CodeLockConflict, "another cancellation holds the lock for this order item")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
