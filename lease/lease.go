// Package lease keeps replicas of a periodic orchestrator from running the same
// pass at the same time. The lease lives in Redis and expires on its own if
// the holder dies.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "op-orchestrator:lease:"

// Lease guards one pass over the suites.
type Lease interface {
	// Acquire reports whether this process now holds the lease. A lease held
	// by somebody else is not an error.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

func NewRedisClient(url string) (redis.UniversalClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func CheckConnection(ctx context.Context, client redis.UniversalClient) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	return nil
}

type RedisLease struct {
	name  string
	mutex *redsync.Mutex
	log   log.Logger
}

var _ Lease = (*RedisLease)(nil)

// NewRedisLease creates a lease called name that expires after ttl unless
// released earlier.
func NewRedisLease(client redis.UniversalClient, name string, ttl time.Duration, logger log.Logger) *RedisLease {
	rs := redsync.New(goredis.NewPool(client))
	return &RedisLease{
		name:  name,
		mutex: rs.NewMutex(keyPrefix+name, redsync.WithExpiry(ttl), redsync.WithTries(1)),
		log:   logger,
	}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	err := l.mutex.TryLockContext(ctx)
	if err == nil {
		l.log.Debug("Acquired lease", "lease", l.name)
		return true, nil
	}
	var taken *redsync.ErrTaken
	if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
		l.log.Info("Lease held elsewhere", "lease", l.name)
		return false, nil
	}
	return false, fmt.Errorf("failed to acquire lease %s: %w", l.name, err)
}

func (l *RedisLease) Release(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", l.name, err)
	}
	if !ok {
		return fmt.Errorf("lease %s expired before release", l.name)
	}
	l.log.Debug("Released lease", "lease", l.name)
	return nil
}
