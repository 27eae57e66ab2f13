package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/translog/internal/config"
)

const (
	keySubmissionClient   = "submission:client:%s"
	keySubmissionInflight = "submission:inflight:%s"
)

var errSubmissionRate = errors.New("submission rate limit must be positive")

// SubmissionLimiter throttles application submissions per client and allows
// one in-flight submission per client at a time.
type SubmissionLimiter struct {
	enabled bool

	client *redis.Client
	bucket *TokenBucket
	locker *Locker

	rate    float64
	burst   int
	lockTTL time.Duration
}

// NewSubmissionLimiter returns nil when rate limiting is disabled; a nil
// limiter allows everything.
func NewSubmissionLimiter(cfg config.Config) (*SubmissionLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	if limitCfg.SubmissionRate <= 0 || limitCfg.SubmissionBurst <= 0 {
		return nil, errSubmissionRate
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})
	return newSubmissionLimiter(client, limitCfg)
}

func newSubmissionLimiter(client *redis.Client, limitCfg config.RateLimitConfig) (*SubmissionLimiter, error) {
	if limitCfg.SubmissionRate <= 0 || limitCfg.SubmissionBurst <= 0 {
		return nil, errSubmissionRate
	}
	lockTTL := limitCfg.SubmissionLockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}

	return &SubmissionLimiter{
		enabled: true,
		client:  client,
		bucket:  NewTokenBucket(client),
		locker:  NewLocker(client),
		rate:    limitCfg.SubmissionRate,
		burst:   limitCfg.SubmissionBurst,
		lockTTL: lockTTL,
	}, nil
}

func (l *SubmissionLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *SubmissionLimiter) Allow(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keySubmissionClient, strings.TrimSpace(clientKey)), l.rate, l.burst)
}

// Acquire takes the in-flight lock for clientKey. The returned release func
// is safe to call when ok is false.
func (l *SubmissionLimiter) Acquire(ctx context.Context, clientKey string) (release func(context.Context) error, ok bool, err error) {
	if !l.Enabled() {
		return func(context.Context) error { return nil }, true, nil
	}

	key := fmt.Sprintf(keySubmissionInflight, strings.TrimSpace(clientKey))
	token, ok, err := l.locker.TryLock(ctx, key, l.lockTTL)
	if err != nil || !ok {
		return func(context.Context) error { return nil }, false, err
	}
	return func(ctx context.Context) error {
		return l.locker.Release(ctx, key, token)
	}, true, nil
}

func (l *SubmissionLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}
