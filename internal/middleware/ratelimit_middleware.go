package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/menu_api/internal/utils"
)

// LoginRateLimiter blocks an IP after too many failed sign-in attempts.
// Only failed attempts count.
type LoginRateLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptInfo
	limit    int
	window   time.Duration
	now      func() time.Time
}

type attemptInfo struct {
	count   int
	firstAt time.Time
}

// NewLoginRateLimiter allows limit failures per window.
func NewLoginRateLimiter(limit int, window time.Duration) *LoginRateLimiter {
	return &LoginRateLimiter{
		attempts: make(map[string]*attemptInfo),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Blocked reports whether ip has used up its failures in the current window.
func (r *LoginRateLimiter) Blocked(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.attempts[ip]
	if !ok {
		return false
	}
	if r.now().Sub(info.firstAt) > r.window {
		delete(r.attempts, ip)
		return false
	}
	return info.count >= r.limit
}

// Fail records a failed attempt.
func (r *LoginRateLimiter) Fail(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	info, ok := r.attempts[ip]
	if !ok || now.Sub(info.firstAt) > r.window {
		r.attempts[ip] = &attemptInfo{count: 1, firstAt: now}
		return
	}
	info.count++
}

// Handle rejects blocked IPs with 429 and counts 401 responses.
func (r *LoginRateLimiter) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if r.Blocked(ip) {
			utils.Error(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "Too many failed attempts, try again later")
			c.Abort()
			return
		}
		c.Next()
		if c.Writer.Status() == http.StatusUnauthorized {
			r.Fail(ip)
		}
	}
}

// Cleanup drops expired entries until ctx is done.
func (r *LoginRateLimiter) Cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			now := r.now()
			for ip, info := range r.attempts {
				if now.Sub(info.firstAt) > r.window {
					delete(r.attempts, ip)
				}
			}
			r.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
