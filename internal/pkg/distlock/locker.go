package distlock

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker hands out one-shot locks per key. It prefers Redis and falls back
// to Postgres advisory locks, like NewLock.
type Locker struct {
	redis *redis.Client
	db    *sql.DB
}

// NewLocker creates a Locker. At least one backend must be non-nil.
func NewLocker(redisClient *redis.Client, db *sql.DB) *Locker {
	return &Locker{redis: redisClient, db: db}
}

// TryLock acquires key without blocking. release is a no-op when ok is false.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	lock := NewLock(l.redis, l.db, key, ttl)
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return func() {}, false, err
	}
	return func() {
		// the request context may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(rctx); err != nil {
			log.Printf("[distlock] release %s: %v", key, err)
		}
	}, true, nil
}

// LocalLocker is an in-process Locker for single-instance deployments and
// tests. Expired entries are reclaimed on the next TryLock for the key.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]localEntry
	now   func() time.Time
	nonce uint64
}

type localEntry struct {
	expires time.Time
	nonce   uint64
}

// NewLocalLocker creates an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]localEntry), now: time.Now}
}

// TryLock acquires key without blocking.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.expires) {
		return func() {}, false, nil
	}
	l.nonce++
	nonce := l.nonce
	l.held[key] = localEntry{expires: now.Add(ttl), nonce: nonce}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.nonce == nonce {
			delete(l.held, key)
		}
	}, true, nil
}
