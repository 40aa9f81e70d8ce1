package bookings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"venuely/internal/shared/constants"
	"venuely/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSlotLocked = errors.New("another booking for this venue and day is in progress")

// SlotLocker serializes booking writes for one venue on one calendar day.
// The returned release func must be called exactly once.
type SlotLocker interface {
	Lock(ctx context.Context, venueID uuid.UUID, day time.Time) (release func(), err error)
}

// NewSlotLocker returns a Redis-backed locker, or an in-process one when
// client is nil.
func NewSlotLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) SlotLocker {
	if client == nil {
		return NewLocalSlotLocker()
	}
	return &redisSlotLocker{
		client:     client,
		ttl:        ttl,
		wait:       ttl,
		retryDelay: 25 * time.Millisecond,
		log:        log.WithComponent("slot-locker"),
	}
}

// Only the holder's token may delete the key.
var releaseSlotLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSlotLocker struct {
	client     *redis.Client
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	log        *logger.Logger
}

func (l *redisSlotLocker) Lock(ctx context.Context, venueID uuid.UUID, day time.Time) (func(), error) {
	key := constants.BuildVenueDayLockKey(venueID.String(), day)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
		}
		if ok {
			return func() { l.release(ctx, key, token) }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrSlotLocked
		}

		select {
		case <-time.After(l.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// release deletes the key if token still holds it. A failed release is
// logged; the key then clears when its TTL expires.
func (l *redisSlotLocker) release(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := releaseSlotLock.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		l.log.WarnContext(ctx, "Failed to release slot lock",
			"key", key, "ttl", l.ttl.String(), "error", err)
	}
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// LocalSlotLocker is a keyed mutex for single-instance deployments and tests.
type LocalSlotLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{locks: make(map[string]*keyedLock)}
}

func (l *LocalSlotLocker) Lock(ctx context.Context, venueID uuid.UUID, day time.Time) (func(), error) {
	key := constants.BuildVenueDayLockKey(venueID.String(), day)

	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.ch
				l.unref(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, ctx.Err()
	}
}

func (l *LocalSlotLocker) unref(key string, kl *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}
