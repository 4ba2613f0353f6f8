package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockExpiry = 10 * time.Second
	redisLockTries  = 64
)

// Redis is a distributed Locker backed by redsync, for deployments running
// more than one server instance.
type Redis struct {
	rs     *redsync.Redsync
	prefix string
}

// NewRedis creates a redsync Locker on top of an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "tontine:lock:",
	}
}

// Lock acquires the distributed mutex for key, retrying until ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	mutex := r.rs.NewMutex(
		r.prefix+key,
		redsync.WithExpiry(redisLockExpiry),
		redsync.WithTries(redisLockTries),
	)
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	stop := keepAlive(mutex, key, redisLockExpiry/3)
	return func() {
		stop()
		// The unlock must survive a cancelled request context.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := mutex.UnlockContext(unlockCtx); err != nil {
			slog.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}

type extender interface {
	ExtendContext(ctx context.Context) (bool, error)
}

// keepAlive extends the lock every interval so holders that outlive the
// expiry, such as long scheduler jobs, keep exclusive access. The returned
// stop blocks until no further extension runs.
func keepAlive(m extender, key string, every time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ok, err := m.ExtendContext(ctx); err != nil || !ok {
					if ctx.Err() != nil {
						return
					}
					slog.Warn("Failed to extend lock", "key", key, "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
