package token

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is a Ledger held in process memory. It is not durable and
// is meant for tests.
type MemoryLedger struct {
	mu          sync.RWMutex
	outstanding map[string]OutstandingToken
	blacklisted map[string]time.Time
	now         func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		outstanding: make(map[string]OutstandingToken),
		blacklisted: make(map[string]time.Time),
		now:         time.Now,
	}
}

func (l *MemoryLedger) RecordOutstanding(_ context.Context, t *OutstandingToken) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.outstanding[t.JTI]; ok {
		return ErrDuplicateToken
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = l.now().UTC()
	}
	rec := *t
	rec.BlacklistedAt = nil
	l.outstanding[t.JTI] = rec
	return nil
}

func (l *MemoryLedger) Blacklist(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.outstanding[jti]; !ok {
		return false, ErrNotFound
	}
	if _, ok := l.blacklisted[jti]; ok {
		return false, nil
	}
	l.blacklisted[jti] = l.now().UTC()
	return true, nil
}

func (l *MemoryLedger) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.blacklisted[jti]
	return ok, nil
}

func (l *MemoryLedger) Lookup(_ context.Context, jti string) (*OutstandingToken, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.outstanding[jti]
	if !ok {
		return nil, ErrNotFound
	}
	if at, ok := l.blacklisted[jti]; ok {
		rec.BlacklistedAt = &at
	}
	return &rec, nil
}

// Count returns the number of outstanding records.
func (l *MemoryLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.outstanding)
}
