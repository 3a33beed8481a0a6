// internal/cache/redis.go
//
// Redis-backed shared tier.
//
// Context
// -------
// Several hostmap processes can share one redis so a cache fill in one
// process spares the database for all of them.  The tier is strictly
// best-effort: the first client error disables it and a background loop
// re-enables it once PING succeeds again.  While disabled, reads and writes
// are cheap no-ops and callers fall through to the database.
//
// Notes
// -----
//   - Errors caused by the caller's own context (cancelled request, expired
//     deadline) say nothing about redis and never disable the tier.
//   - Del is attempted even while disabled.  A failed eviction is logged;
//     the stale entry then lives until its TTL.
//   - Close stops the reconnect loop.
package cache

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisOptions configures a Redis tier.
type RedisOptions struct {
	// Client cannot be nil.
	Client redis.Cmdable

	// ClientCloser closes Client when Redis.Close is called.  Optional.
	ClientCloser io.Closer

	// Timeout bounds every read and write.  Default 50ms.
	Timeout time.Duration

	// Prefix namespaces keys, e.g. "hostmap:".
	Prefix string

	Logger *zap.Logger
}

// Redis is safe for concurrent use.
type Redis struct {
	opts     RedisOptions
	disabled uint32
	reconnecting  atomic.Bool

	closed    chan struct{}
	closeOnce sync.Once
}

// NewRedis validates opts and returns the tier.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.Client == nil {
		return nil, errors.New("cache: nil redis client")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 50 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Redis{opts: opts, closed: make(chan struct{})}, nil
}

func (r *Redis) isDisabled() bool { return atomic.LoadUint32(&r.disabled) != 0 }

func (r *Redis) disable() {
	if !atomic.CompareAndSwapUint32(&r.disabled, 0, 1) {
		return
	}
	r.opts.Logger.Warn("redis tier temporarily disabled")
	r.reconnecting.Store(true)
	go r.reconnect()
}

// reconnect pings with growing backoff until redis answers or Close is called.
func (r *Redis) reconnect() {
	defer r.reconnecting.Store(false)

	const maxBackoff = 30 * time.Second
	backoff := 100 * time.Millisecond
	for {
		select {
		case <-r.closed:
			return
		case <-time.After(backoff):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		err := r.opts.Client.Ping(ctx).Err()
		cancel()
		if err != nil {
			backoff += time.Second + time.Duration(rand.Intn(1000))*time.Millisecond
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			r.opts.Logger.Warn("redis ping failed",
				zap.Error(err), zap.Duration("next_ping", backoff))
			continue
		}
		atomic.StoreUint32(&r.disabled, 0)
		r.opts.Logger.Info("redis tier re-enabled")
		return
	}
}

// fail logs err and disables the tier unless the caller's context caused it.
func (r *Redis) fail(parent context.Context, op string, keys []string, err error) {
	if parent.Err() != nil {
		r.opts.Logger.Debug("redis "+op+" abandoned by caller",
			zap.Strings("keys", keys), zap.Error(err))
		return
	}
	r.opts.Logger.Warn("redis "+op, zap.Strings("keys", keys), zap.Error(err))
	r.disable()
}

// Get returns the raw bytes under key.
func (r *Redis) Get(parent context.Context, key string) ([]byte, bool) {
	if r.isDisabled() {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(parent, r.opts.Timeout)
	defer cancel()

	b, err := r.opts.Client.Get(ctx, r.opts.Prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.fail(parent, "get", []string{key}, err)
		}
		return nil, false
	}
	return b, true
}

// Set stores b under key for ttl.
func (r *Redis) Set(parent context.Context, key string, b []byte, ttl time.Duration) {
	if r.isDisabled() || ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(parent, r.opts.Timeout)
	defer cancel()

	if err := r.opts.Client.Set(ctx, r.opts.Prefix+key, b, ttl).Err(); err != nil {
		r.fail(parent, "set", []string{key}, err)
	}
}

// Del removes keys.  It runs even while the tier is disabled, since a
// skipped eviction would leave stale shared entries behind.
func (r *Redis) Del(parent context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(parent, r.opts.Timeout)
	defer cancel()

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.opts.Prefix + k
	}
	if err := r.opts.Client.Del(ctx, full...).Err(); err != nil {
		r.opts.Logger.Warn("redis eviction failed, shared entries expire by TTL",
			zap.Strings("keys", keys), zap.Error(err))
		if parent.Err() == nil {
			r.disable()
		}
	}
}

// Close stops the re-enable loop and closes the client when a closer was
// supplied.
func (r *Redis) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	if c := r.opts.ClientCloser; c != nil {
		return c.Close()
	}
	return nil
}
