// Package lease keeps two runners from executing the same job at the same time.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrHeld is returned when another runner holds the lease.
	ErrHeld = errors.New("lease is held by another runner")
	// ErrLost is returned by Renew once the lease expired or passed to another runner.
	ErrLost = errors.New("lease was lost")
)

// Lease is a held lease. Releasing an expired or stolen lease is not an error.
type Lease interface {
	// Renew pushes the expiry out to ttl from now.
	Renew(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Locker acquires named leases that expire after ttl unless renewed.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Local is an in-process Locker for single-instance deployments and tests.
type Local struct {
	mu     sync.Mutex
	held   map[string]localEntry
	nextID uint64
	now    func() time.Time
}

type localEntry struct {
	id      uint64
	expires time.Time
}

// NewLocal creates a Local locker.
func NewLocal() *Local {
	return &Local{held: make(map[string]localEntry), now: time.Now}
}

// Acquire implements Locker.
func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, ErrHeld
	}
	l.nextID++
	l.held[key] = localEntry{id: l.nextID, expires: now.Add(ttl)}
	return &localLease{locker: l, key: key, id: l.nextID}, nil
}

type localLease struct {
	locker *Local
	key    string
	id     uint64
}

func (ll *localLease) Renew(_ context.Context, ttl time.Duration) error {
	l := ll.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cur, ok := l.held[ll.key]
	if !ok || cur.id != ll.id || !now.Before(cur.expires) {
		return ErrLost
	}
	l.held[ll.key] = localEntry{id: ll.id, expires: now.Add(ttl)}
	return nil
}

func (ll *localLease) Release(context.Context) error {
	l := ll.locker
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.held[ll.key]; ok && cur.id == ll.id {
		delete(l.held, ll.key)
	}
	return nil
}
