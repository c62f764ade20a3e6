package control

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter implements per-client command rate limiting
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimit
	config   RateLimitConfig
	stopChan chan struct{}
	stopOnce sync.Once
}

type clientLimit struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitConfig configures rate limiting behavior
type RateLimitConfig struct {
	// PerSecond is the sustained command rate per client
	PerSecond float64
	// Burst allows short spikes such as a fast drag
	Burst int
	// IdleTTL drops limiters of clients that went quiet
	IdleTTL time.Duration
}

// DefaultRateLimitConfig for client commands. Pointer samples arrive at
// display rate, so the budget is sized for a 120 Hz drag.
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 150,
	Burst:     60,
	IdleTTL:   5 * time.Minute,
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultRateLimitConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}

	rl := &RateLimiter{
		clients:  make(map[string]*clientLimit),
		config:   cfg,
		stopChan: make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Allow checks if a client can execute a command
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	limit, exists := rl.clients[client]
	if !exists {
		limit = &clientLimit{limiter: rate.NewLimiter(rate.Limit(rl.config.PerSecond), rl.config.Burst)}
		rl.clients[client] = limit
	}
	limit.lastSeen = now
	return limit.limiter.AllowN(now, 1)
}

// Forget drops a client's limiter, e.g. when its connection closes.
func (rl *RateLimiter) Forget(client string) {
	rl.mu.Lock()
	delete(rl.clients, client)
	rl.mu.Unlock()
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

// cleanup removes idle entries every minute
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.sweep(time.Now())
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.config.IdleTTL)
	for key, limit := range rl.clients {
		if limit.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}
