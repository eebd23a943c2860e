package middleware

import (
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const defaultLimiterCapacity = 10000

// RateLimiter holds a token bucket per user. It guards both bot updates and HTTP requests.
// Buckets of the least recently seen users are evicted once capacity is reached;
// an evicted user starts again with a full bucket.
type RateLimiter struct {
	limiters *lru.Cache[int64, *rate.Limiter]
	mu       sync.Mutex
	// Rate is the number of events per second.
	rate rate.Limit
	// Burst is the burst size.
	burst int
}

// NewRateLimiter creates a new RateLimiter tracking at most capacity users.
// A non-positive r disables limiting; a non-positive capacity uses the default.
func NewRateLimiter(r rate.Limit, b int, capacity int) *RateLimiter {
	if r <= 0 {
		r = rate.Inf
	}
	if capacity <= 0 {
		capacity = defaultLimiterCapacity
	}
	// lru.New only fails for a non-positive size.
	cache, _ := lru.New[int64, *rate.Limiter](capacity)
	return &RateLimiter{
		limiters: cache,
		rate:     r,
		burst:    b,
	}
}

// Allow reports whether userID may make another request now.
func (rl *RateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters.Get(userID)
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters.Add(userID, limiter)
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// Len returns the number of users currently tracked.
func (rl *RateLimiter) Len() int {
	return rl.limiters.Len()
}

// Middleware limits requests per authenticated user. It must run after AuthMiddleware.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			// This should not happen if AuthMiddleware is used before this.
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !rl.Allow(user.ID) {
			log.Warn().Int64("user_id", user.ID).Msg("Rate limit exceeded")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
