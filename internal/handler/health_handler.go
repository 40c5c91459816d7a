package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// Pinger is anything whose connectivity can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SubscriberCounter reports connected push subscribers.
type SubscriberCounter interface {
	ClientCount() int
}

// HealthHandler provides health endpoint.
type HealthHandler struct {
	db          Pinger
	redis       Pinger
	subscribers SubscriberCounter
}

// NewHealthHandler creates a new HealthHandler. redis may be nil.
func NewHealthHandler(db, redis Pinger, subscribers SubscriberCounter) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, subscribers: subscribers}
}

// GetHealth responds with service, database and Redis status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbStatus := status(ctx, h.db)
	redisStatus := status(ctx, h.redis)

	overall, code := "healthy", 200
	if dbStatus != "connected" {
		overall, code = "degraded", 503
	}

	c.JSON(code, gin.H{
		"success": code == 200,
		"code":    code,
		"message": "Service is " + overall,
		"data": gin.H{
			"status":      overall,
			"version":     "1.0.0",
			"uptime":      int(time.Since(startTime).Seconds()),
			"database":    dbStatus,
			"redis":       redisStatus,
			"subscribers": h.subscribers.ClientCount(),
		},
	})
}

func status(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "disconnected"
	}
	return "connected"
}
