package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const lockKeyPrefix = "attendance:lock:" // String: attendance:lock:{date} -> owner token

// ErrLockHeld is returned when a lock could not be acquired before the
// caller's wait ran out.
var ErrLockHeld = errors.New("lock is held by another request")

// releaseScript deletes the key only if it still holds our token, so an
// expired lock that someone else re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript pushes the expiry out only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises work per key across every process sharing one Redis.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration // how long a crashed holder can block others; renewed every TTL/3 while held
	Wait   time.Duration // how long Lock retries before giving up
	Retry  time.Duration // delay between attempts
}

// NewRedisLocker creates a new RedisLocker instance
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		Client: client,
		TTL:    ttl,
		Wait:   ttl,
		Retry:  50 * time.Millisecond,
	}
}

// Helper to generate the lock key
func getLockKey(name string) string {
	return lockKeyPrefix + name
}

// Lock blocks until the key is acquired, ctx is done, or Wait elapses.
// The lease is renewed until the returned func releases the lock.
func (l *RedisLocker) Lock(ctx context.Context, name string) (func(), error) {
	key := getLockKey(name)
	token := uuid.NewString()
	deadline := time.Now().Add(l.Wait)

	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			log.Printf("Error acquiring lock %s: %v", key, err)
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.Retry):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.renew(key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// Release on a fresh context: the request context may already be done.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, l.Client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("Error releasing lock %s: %v", key, err)
			}
		})
	}, nil
}

// renew extends the lease every TTL/3 until stop is closed or the key no
// longer holds token.
func (l *RedisLocker) renew(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	interval := l.TTL / 3
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		n, err := renewScript.Run(ctx, l.Client, []string{key}, token, l.TTL.Milliseconds()).Int()
		cancel()
		if err != nil {
			log.Printf("Error renewing lock %s: %v", key, err)
			continue
		}
		if n == 0 {
			log.Printf("Lock %s was lost before release", key)
			return
		}
	}
}

// MutexLocker serialises work per key within a single process. It is used
// when no Redis is configured.
type MutexLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock is dropped from the map once no caller holds or waits on it.
type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{locks: make(map[string]*keyLock)}
}

func (l *MutexLocker) Lock(ctx context.Context, name string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[name]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[name] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(name, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.release(name, kl)
		})
	}, nil
}

func (l *MutexLocker) release(name string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, name)
	}
}

// --- Utility ---

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(addr, password string, database int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	// Ping Redis to check connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s DB %d", addr, database)
	return rdb, nil
}
