package ratelimiter

import "context"

// RateLimiter is the interface for rate limiting.
type RateLimiter interface {
	// Allow returns true if the request is allowed, otherwise returns false.
	Allow() bool
}

// Waiter is a RateLimiter that can block until a request is allowed.
type Waiter interface {
	RateLimiter
	// Wait blocks until the request is allowed or ctx is done.
	Wait(ctx context.Context) error
}

var _ Waiter = (*TokenBucket)(nil)
