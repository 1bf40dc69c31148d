package utils

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-metrics/src/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// -----------------------------------------------------------------------------
// MemorySymbolLocker locks symbols within one process.
// -----------------------------------------------------------------------------

type MemorySymbolLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemorySymbolLocker() *MemorySymbolLocker {
	return &MemorySymbolLocker{slots: make(map[string]chan struct{})}
}

func (l *MemorySymbolLocker) slot(symbol string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[symbol]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[symbol] = ch
	}
	return ch
}

// -----------------------------------------------------------------------------

func (l *MemorySymbolLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	ch := l.slot(symbol)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-ch })
	}, nil
}

// -----------------------------------------------------------------------------
// RedisSymbolLocker locks symbols across processes (ingest and metrics jobs
// may run as separate binaries against one store).
// -----------------------------------------------------------------------------

const lockKeyPrefix = "market-metrics:lock:"

// release only if the key still carries our token
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisSymbolLocker struct {
	Client    *redis.Client
	TTL       time.Duration
	PollEvery time.Duration
	Logger    *logger.Logger
}

func NewRedisSymbolLocker(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisSymbolLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTLSeconds * time.Second
	}
	return &RedisSymbolLocker{
		Client:    client,
		TTL:       ttl,
		PollEvery: 100 * time.Millisecond,
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

func (l *RedisSymbolLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	key := lockKeyPrefix + symbol
	token := uuid.NewString()

	delay := l.PollEvery
	for {
		ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("acquire lock for %s: %w", symbol, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 2*time.Second {
			delay *= 2
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must not depend on the caller's (possibly cancelled) ctx.
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := unlockScript.Run(relCtx, l.Client, []string{key}, token).Err(); err != nil && l.Logger != nil {
				l.Logger.Warning("Failed to release lock for %s: %v", symbol, err)
			}
		})
	}, nil
}
