package middleware

import (
	"net/http"
	"sync"
	"time"

	apiContext "shopmirror/internal/api/context"
	"shopmirror/internal/platform/auth"
)

// RateLimiter is a per-principal token bucket guarding the operator read
// endpoints. Webhook ingestion is deliberately not rate limited: a 429 would
// push the commerce platform into retry storms.
type RateLimiter struct {
	store   sync.Map // map[string]*bucket
	perMin  int
	cleanup sync.Once
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{perMin: perMinute}
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		rl.store.Range(func(key, value interface{}) bool {
			b := value.(*bucket)
			b.mu.Lock()
			if now.Sub(b.lastAccess) > 10*time.Minute {
				rl.store.Delete(key)
			}
			b.mu.Unlock()
			return true
		})
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.cleanup.Do(func() { go rl.cleanupLoop() })

	now := time.Now()
	val, _ := rl.store.LoadOrStore(key, &bucket{
		tokens:     rl.perMin,
		lastRefill: now,
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastAccess = now

	refill := int(now.Sub(b.lastRefill).Seconds() * float64(rl.perMin) / 60.0)
	if refill > 0 {
		b.tokens += refill
		if b.tokens > rl.perMin {
			b.tokens = rl.perMin
		}
		b.lastRefill = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

func (rl *RateLimiter) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
			key = claims.UserID
		}

		if !rl.Allow(key) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}
