package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one admission round trip to Redis.
const DefaultTimeout = 200 * time.Millisecond

// fixedWindowScript increments the counter and arms its TTL only on the
// first hit of a window, so later hits never extend it. A key found
// without a TTL is re-armed rather than left to count forever.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int
	Window     time.Duration
	RetryAfter time.Duration
	// FailedOpen is set when the counter store could not be consulted and
	// the request was allowed anyway.
	FailedOpen bool
}

// Remaining is the number of requests still allowed in the current window.
func (d Decision) Remaining() int {
	if r := int64(d.Limit) - d.Count; r > 0 {
		return int(r)
	}
	return 0
}

// Limiter is the admission controller. It holds no state of its own; all
// counters live in Redis.
type Limiter struct {
	rdb     redis.Scripter
	timeout time.Duration
	log     *zap.Logger
}

// NewLimiter returns a limiter backed by rdb. A nil client (Redis was
// unreachable at startup) makes every decision fail open.
func NewLimiter(rdb *redis.Client, timeout time.Duration, log *zap.Logger) *Limiter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Limiter{timeout: timeout, log: log}
	if rdb != nil {
		l.rdb = rdb
	}
	return l
}

// Admit counts one request against key under p. Errors never reach the
// caller: when Redis fails or times out the request is allowed and the
// decision is marked FailedOpen.
func (l *Limiter) Admit(ctx context.Context, p Policy, key string) Decision {
	d := Decision{Allowed: true, Limit: p.Limit, Window: p.Window}
	if l.rdb == nil {
		return l.failOpen(d, key, errNoClient)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	windowSecs := int64(p.Window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}
	vals, err := fixedWindowScript.Run(ctx, l.rdb, []string{key}, windowSecs).Int64Slice()
	if err != nil {
		return l.failOpen(d, key, err)
	}
	if len(vals) != 2 {
		return l.failOpen(d, key, fmt.Errorf("unexpected script result: %v", vals))
	}

	d.Count = vals[0]
	if d.Count <= int64(p.Limit) {
		return d
	}

	ttl := vals[1]
	if ttl < 1 {
		ttl = 1
	}
	if ttl > windowSecs {
		ttl = windowSecs
	}
	d.Allowed = false
	d.RetryAfter = time.Duration(ttl) * time.Second
	return d
}

var errNoClient = errors.New("redis client not configured")

func (l *Limiter) failOpen(d Decision, key string, err error) Decision {
	if errors.Is(err, errNoClient) {
		l.log.Debug("rate limiter failing open", zap.String("key", key), zap.Error(err))
	} else {
		l.log.Warn("rate limiter failing open", zap.String("key", key), zap.Error(err))
	}
	d.FailedOpen = true
	return d
}
