package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when another holder keeps the key locked
// after every retry.
var ErrLockNotObtained = errors.New("redis: lock not obtained")

type Options struct {
	Address  string
	Password string
	DB       int
	Prefix   string
	LockTTL  time.Duration
}

// Client wraps the redis connection and the distributed locker built on it.
type Client struct {
	raw     *redis.Client
	locker  *redislock.Client
	prefix  string
	lockTTL time.Duration
}

// New bootstraps a Redis client and verifies connectivity.
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.Address == "" {
		return nil, errors.New("redis address is required")
	}
	raw := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newClient(raw, opts), nil
}

func newClient(raw *redis.Client, opts Options) *Client {
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{
		raw:     raw,
		locker:  redislock.New(raw),
		prefix:  opts.Prefix,
		lockTTL: ttl,
	}
}

// Key namespaces parts under the configured prefix.
func (c *Client) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if c.prefix != "" {
		all = append(all, c.prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, ":")
}

// Acquire obtains the lock for key, retrying briefly while another process
// holds it. The returned release func is safe to call once.
func (c *Client) Acquire(ctx context.Context, key string) (func(), error) {
	backoff := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30)
	lock, err := c.locker.Obtain(ctx, c.Key("lock", key), c.lockTTL, &redislock.Options{
		RetryStrategy: backoff,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// the lock may have expired already; release errors are not actionable
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}

// Ping verifies the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.raw.Close()
}
