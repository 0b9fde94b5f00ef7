package auth

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RateLimiter admits or refuses a request of an authenticated caller.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// maxTrackedSubjects bounds the number of per-subject buckets kept in
// memory; the least recently seen subject is dropped first.
const maxTrackedSubjects = 10000

// TokenBucketLimiter gives every subject and tier its own token bucket.
// The bucket refills at the tier's requests-per-minute rate and bursts up
// to one minute's worth of requests.
type TokenBucketLimiter struct {
	tiers      map[string]int
	defaultRPM int
	buckets    *lru.Cache[string, *rate.Limiter]
}

var _ RateLimiter = (*TokenBucketLimiter)(nil)

// NewTokenBucketLimiter creates a limiter. tiers maps a service tier to
// requests per minute; tiers not listed use defaultRPM. A rate of zero or
// less disables limiting for that tier.
func NewTokenBucketLimiter(tiers map[string]int, defaultRPM int) *TokenBucketLimiter {
	buckets, _ := lru.New[string, *rate.Limiter](maxTrackedSubjects)
	return &TokenBucketLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    buckets,
	}
}

// Allow reports ErrTooManyRequests when the subject's bucket is empty.
func (l *TokenBucketLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.RateTier()

	rpm := l.defaultRPM
	if n, ok := l.tiers[tier]; ok {
		rpm = n
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier
	bucket, ok := l.buckets.Get(key)
	if !ok {
		fresh := rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
		// Another request may have created the bucket concurrently.
		if prev, found, _ := l.buckets.PeekOrAdd(key, fresh); found {
			bucket = prev
		} else {
			bucket = fresh
		}
	}

	if !bucket.Allow() {
		return ErrTooManyRequests
	}
	return nil
}
