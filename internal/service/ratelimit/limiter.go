package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter { return &Limiter{m: make(map[string]*bucket), now: time.Now} }

// reserve takes n tokens from key's bucket, going into debt if needed, and
// returns how long the caller must wait before the tokens are available.
func (l *Limiter) reserve(key string, n, capacity, refillPerSec float64) time.Duration {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	// refill
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
	b.tokens -= n
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.refillRate * float64(time.Second))
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string, capacity, refillPerSec float64) bool {
	if l.reserve(key, 1, capacity, refillPerSec) == 0 {
		return true
	}
	// give the token back
	l.mu.Lock()
	l.m[key].tokens++
	l.mu.Unlock()
	return false
}

// Wait blocks until n tokens of key's bucket are available or ctx is done.
// Batches larger than capacity are admitted and paid for afterwards.
func (l *Limiter) Wait(ctx context.Context, key string, n, capacity, refillPerSec float64) error {
	if refillPerSec <= 0 || capacity <= 0 {
		return fmt.Errorf("ratelimit %s: capacity and rate must be positive", key)
	}
	d := l.reserve(key, n, capacity, refillPerSec)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
