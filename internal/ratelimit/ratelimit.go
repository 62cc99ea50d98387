// Package ratelimit implements sliding-window admission control backed by a
// shared Redis counter store, so that limits hold across multiple concurrent
// instances of the transfer core.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Operation names a rate-limited action. Each (actor, operation) pair has
// its own counter window.
type Operation string

const (
	OpTransfer     Operation = "transfer"
	OpRequestMoney Operation = "request"
	OpLogin        Operation = "login"
	OpAPI          Operation = "api"
)

// Policy is the capacity of one operation's sliding window.
type Policy struct {
	Capacity int
	Window   time.Duration
}

// DefaultPolicies returns the shipped per-operation limits.
func DefaultPolicies() map[Operation]Policy {
	return map[Operation]Policy{
		OpTransfer:     {Capacity: 10, Window: time.Hour},
		OpRequestMoney: {Capacity: 20, Window: time.Hour},
		OpLogin:        {Capacity: 5, Window: 15 * time.Minute},
		OpAPI:          {Capacity: 100, Window: time.Minute},
	}
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// slidingWindow increments the current window bucket and computes the
// weighted sliding-window count in one atomic server-side step, so
// concurrent callers sharing an actor key can never both observe a
// pre-increment count.
//
// KEYS[1] current bucket, KEYS[2] previous bucket.
// ARGV[1] window length ms, ARGV[2] now ms.
// Returns the weighted count.
var slidingWindow = redis.NewScript(`
local window = tonumber(ARGV[1])
local now = tonumber(ARGV[2])

local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], window * 2)
end

local prev = tonumber(redis.call("GET", KEYS[2]) or "0")
local elapsed = now % window
local weighted = math.floor(prev * (window - elapsed) / window) + count

return weighted
`)

// Limiter performs sliding-window admission checks against Redis.
type Limiter struct {
	client   redis.UniversalClient
	policies map[Operation]Policy
	prefix   string
	timeout  time.Duration
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithPolicies overrides the per-operation limits.
func WithPolicies(p map[Operation]Policy) Option {
	return func(l *Limiter) { l.policies = p }
}

// WithTimeout bounds each counter-store call.
func WithTimeout(d time.Duration) Option {
	return func(l *Limiter) { l.timeout = d }
}

// WithClock injects a time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter over the given Redis client.
func NewLimiter(client redis.UniversalClient, opts ...Option) *Limiter {
	l := &Limiter{
		client:   client,
		policies: DefaultPolicies(),
		prefix:   "ratelimit",
		timeout:  2 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit atomically counts the request against the (actor, operation) window
// and decides admission. A counter-store failure is returned as an error and
// never silently admits or denies.
func (l *Limiter) Admit(ctx context.Context, actor string, op Operation) (Decision, error) {
	policy, ok := l.policies[op]
	if !ok {
		return Decision{}, fmt.Errorf("no rate limit policy for operation %q", op)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	windowMs := policy.Window.Milliseconds()
	nowMs := l.now().UnixMilli()
	idx := nowMs / windowMs

	currentKey := fmt.Sprintf("%s:%s:%s:%d", l.prefix, op, actor, idx)
	previousKey := fmt.Sprintf("%s:%s:%s:%d", l.prefix, op, actor, idx-1)

	weighted, err := slidingWindow.Run(ctx, l.client,
		[]string{currentKey, previousKey}, windowMs, nowMs).Int()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter for %s/%s: %w", op, actor, err)
	}

	resetAt := time.UnixMilli((idx + 1) * windowMs)
	remaining := policy.Capacity - weighted
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{
		Allowed:   weighted <= policy.Capacity,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !decision.Allowed {
		slog.WarnContext(ctx, "Rate limit exceeded",
			"actor", actor,
			"operation", string(op),
			"weighted_count", weighted,
			"capacity", policy.Capacity,
			"reset_at", resetAt)
	}

	return decision, nil
}

// Policy returns the configured policy for an operation.
func (l *Limiter) Policy(op Operation) (Policy, bool) {
	p, ok := l.policies[op]
	return p, ok
}
