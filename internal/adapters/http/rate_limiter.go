package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openmic/micqueue/internal/domain"
	"github.com/openmic/micqueue/internal/identity"
)

// SessionRateLimiter throttles mutating calls per session id with a
// sliding window. Identities are free to mint, so this is abuse
// damping, not access control.
type SessionRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.SessionID][]time.Time
	limit    int
	interval time.Duration
}

func NewSessionRateLimiter(limit int, interval time.Duration) *SessionRateLimiter {
	return &SessionRateLimiter{
		history:  make(map[domain.SessionID][]time.Time),
		limit:    limit,
		interval: interval,
	}
}

func (rl *SessionRateLimiter) Allow(sid domain.SessionID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.interval)

	attempts := rl.history[sid]
	fresh := make([]time.Time, 0, len(attempts))
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[sid] = fresh
		return false
	}

	fresh = append(fresh, now)
	rl.history[sid] = fresh
	return true
}

// Limit is the gin middleware form, applied to claim/join endpoints.
func (rl *SessionRateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := identity.FromContext(c)
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		if !rl.Allow(sid) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts, slow down"})
			return
		}
		c.Next()
	}
}
