package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate int // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a full bucket
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow takes one token if available and reports the tokens left
func (tb *TokenBucket) Allow() (bool, int) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(tb.tokens)
	}
	return false, 0
}

// retryAfter is the wait until one token is available
func (tb *TokenBucket) retryAfter() time.Duration {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	if tb.refillRate <= 0 {
		return time.Minute
	}
	missing := 1 - tb.tokens
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(tb.refillRate) * float64(time.Second))
}

type limit struct {
	capacity   int
	refillRate int
}

// RateLimiter keeps one bucket per client and route group
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex

	defaults       limit
	endpointLimits map[string]limit
	rejected       int64
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. Patch endpoints write files and get a tighter budget.
func NewRateLimiter(rps, burst int) *RateLimiter {
	half := func(v int) int { return max(1, v/2) }

	return &RateLimiter{
		buckets:  make(map[string]*TokenBucket),
		defaults: limit{capacity: burst, refillRate: rps},
		endpointLimits: map[string]limit{
			"/v1/patch":    {capacity: burst, refillRate: rps},
			"/v1/batch":    {capacity: half(burst), refillRate: half(rps)},
			"/v1/rulesets": {capacity: burst, refillRate: rps},
			"/health":      {capacity: 20, refillRate: 2},
			"/metrics":     {capacity: 20, refillRate: 2},
		},
	}
}

// routeGroup maps a path to the key of its limit, so every rule set shares
// the /v1/rulesets budget
func (rl *RateLimiter) routeGroup(path string) (string, limit) {
	for prefix, l := range rl.endpointLimits {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix, l
		}
	}
	return path, rl.defaults
}

func (rl *RateLimiter) getBucket(clientID, path string) (*TokenBucket, limit) {
	group, l := rl.routeGroup(path)
	key := clientID + ":" + group

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()
	if exists {
		return bucket, l
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket, l
	}
	bucket = NewTokenBucket(l.capacity, l.refillRate)
	rl.buckets[key] = bucket
	return bucket, l
}

func (rl *RateLimiter) getClientID(c *fiber.Ctx) string {
	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return "api:" + apiKey
	}
	if auth := c.Get("Authorization"); auth != "" {
		return "auth:" + auth
	}
	return "ip:" + c.IP()
}

// Middleware returns a Fiber middleware for rate limiting
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.getClientID(c)
		bucket, l := rl.getBucket(clientID, c.Path())

		allowed, remaining := bucket.Allow()
		c.Set("X-RateLimit-Limit", strconv.Itoa(l.capacity))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			rl.mutex.Lock()
			rl.rejected++
			rl.mutex.Unlock()

			wait := bucket.retryAfter()
			seconds := int(wait.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}

			appErr := domain.NewAppError(
				domain.ErrRateLimit,
				"Rate limit exceeded",
				fiber.StatusTooManyRequests,
				map[string]any{
					"endpoint":    c.Path(),
					"retry_after": seconds,
				},
			).WithContext(c.UserContext(), "rate_limit")

			c.Set("Retry-After", strconv.Itoa(seconds))
			return c.Status(appErr.StatusCode).JSON(map[string]any{
				"status":  "error",
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
		}

		return c.Next()
	}
}

// CleanupOldBuckets removes buckets idle for more than an hour
func (rl *RateLimiter) CleanupOldBuckets() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastRefill)
		bucket.mutex.Unlock()
		if idle > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs CleanupOldBuckets periodically until stop is called
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mutex.RLock()
	defer rl.mutex.RUnlock()

	return map[string]any{
		"active_buckets":      len(rl.buckets),
		"default_capacity":    rl.defaults.capacity,
		"default_refill_rate": rl.defaults.refillRate,
		"rejected":            rl.rejected,
	}
}
