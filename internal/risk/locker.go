package risk

import (
	"context"
	"sync"
	"time"
)

const DefaultLockTimeout = 5 * time.Second

// AccountLocker serializes work per account. Different accounts never block
// each other. Entries are reference counted and dropped when idle.
type AccountLocker struct {
	mu      sync.Mutex
	slots   map[int64]*lockSlot
	timeout time.Duration
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

func NewAccountLocker(timeout time.Duration) *AccountLocker {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &AccountLocker{slots: make(map[int64]*lockSlot), timeout: timeout}
}

// Lock blocks until the account is free, the timeout elapses or ctx ends.
// On success the returned func releases the lock.
func (l *AccountLocker) Lock(ctx context.Context, accountID int64) (func(), error) {
	slot := l.acquireSlot(accountID)

	timer := time.NewTimer(l.timeout)
	defer timer.Stop()

	select {
	case slot.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.sem
				l.releaseSlot(accountID, slot)
			})
		}, nil
	case <-timer.C:
		l.releaseSlot(accountID, slot)
		return nil, ErrLockTimeout
	case <-ctx.Done():
		l.releaseSlot(accountID, slot)
		return nil, ctx.Err()
	}
}

// Do runs fn while holding the account lock.
func (l *AccountLocker) Do(ctx context.Context, accountID int64, fn func(ctx context.Context) error) error {
	unlock, err := l.Lock(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

func (l *AccountLocker) acquireSlot(accountID int64) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[accountID]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[accountID] = slot
	}
	slot.refs++
	return slot
}

func (l *AccountLocker) releaseSlot(accountID int64, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, accountID)
	}
}

func (l *AccountLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
