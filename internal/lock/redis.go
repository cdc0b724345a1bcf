package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/siddu28/Erflog/internal/utils"
)

const (
	defaultTTL       = 2 * time.Minute
	defaultRetry     = 100 * time.Millisecond
	defaultKeyPrefix = "erflog:lock:"
	releaseTimeout   = 5 * time.Second
)

var renewScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process using the same Redis instance.
// Locks expire after TTL so a crashed holder cannot block a key forever; a
// live holder renews its lease every TTL/3 until it unlocks.
type Redis struct {
	client *goredis.Client
	logger *zap.Logger
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

func NewRedis(client *goredis.Client, logger *zap.Logger, ttl time.Duration) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{
		client: client,
		logger: logger,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		retry:  defaultRetry,
	}
}

// Connect dials addr and verifies the connection with PING.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	k := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, k, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if err := utils.WaitFor(ctx, r.retry); err != nil {
			return nil, err
		}
	}

	renewCtx, stopRenew := context.WithCancel(context.Background())
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		keepAlive(renewCtx, r.ttl/3, func(ctx context.Context) (bool, error) {
			n, err := renewScript.Run(ctx, r.client, []string{k}, token, r.ttl.Milliseconds()).Int64()
			return n == 1, err
		}, func(err error) {
			r.logger.Error("lock lease renewal failed", zap.String("key", key), zap.Error(err))
		})
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			stopRenew()
			<-renewed
			releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{k}, token).Err(); err != nil {
				r.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

var errLeaseLost = errors.New("lease no longer held")

// keepAlive calls renew every interval until ctx is done. A failed or
// refused renewal is reported through lost and ends the loop when the lease
// is gone.
func keepAlive(ctx context.Context, interval time.Duration, renew func(context.Context) (bool, error), lost func(error)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		callCtx, cancel := context.WithTimeout(ctx, interval)
		held, err := renew(callCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			lost(fmt.Errorf("renew: %w", err))
		case !held:
			lost(errLeaseLost)
			return
		}
	}
}
