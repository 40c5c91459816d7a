package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/realtime"
	"github.com/GTDGit/menu_api/internal/utils"
)

// StreamHandler attaches push subscribers to the broadcast hub.
type StreamHandler struct {
	hub        *realtime.Hub
	upgrader   websocket.Upgrader
	bufferSize int
}

// NewStreamHandler creates a StreamHandler. checkOrigin may be nil to accept
// any origin.
func NewStreamHandler(hub *realtime.Hub, bufferSize int, checkOrigin func(r *http.Request) bool) *StreamHandler {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &StreamHandler{
		hub:        hub,
		bufferSize: bufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// WebSocket handles GET /api/ws
func (h *StreamHandler) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	sub := realtime.NewWSSubscriber(utils.SubscriberID("ws"), conn, h.bufferSize)
	h.hub.Register(sub)
	defer h.hub.Unregister(sub.ID())

	sub.Run()
}

// Events handles GET /api/events
func (h *StreamHandler) Events(c *gin.Context) {
	sub := realtime.NewStreamSubscriber(utils.SubscriberID("sse"), h.bufferSize)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable nginx buffering

	h.hub.Register(sub)
	defer h.hub.Unregister(sub.ID())

	c.SSEvent("connected", gin.H{
		"clientId":  sub.ID(),
		"timestamp": time.Now().Format(time.RFC3339),
	})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			sub.Ack()
			return true
		case <-sub.Pings():
			c.SSEvent("ping", gin.H{"timestamp": time.Now().Format(time.RFC3339)})
			sub.Ack()
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
