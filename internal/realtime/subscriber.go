package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	errSubscriberClosed = errors.New("subscriber closed")
	errBufferFull       = errors.New("subscriber buffer full")
)

const writeWait = 10 * time.Second

// queue is the buffered outbox shared by both subscriber kinds.
type queue struct {
	mu     sync.Mutex
	closed bool
	ch     chan []byte
}

func newQueue(size int) *queue {
	if size <= 0 {
		size = 64
	}
	return &queue{ch: make(chan []byte, size)}
}

func (q *queue) push(msg []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errSubscriberClosed
	}
	select {
	case q.ch <- msg:
		return nil
	default:
		return errBufferFull
	}
}

// close reports whether this call closed the queue.
func (q *queue) close() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.closed = true
	close(q.ch)
	return true
}

// WSSubscriber pushes events over a WebSocket connection. Probes are
// WebSocket pings; a pong marks the subscriber as responsive.
type WSSubscriber struct {
	id        string
	conn      *websocket.Conn
	out       *queue
	responded atomic.Bool
}

// NewWSSubscriber wraps an upgraded connection.
func NewWSSubscriber(id string, conn *websocket.Conn, bufferSize int) *WSSubscriber {
	s := &WSSubscriber{id: id, conn: conn, out: newQueue(bufferSize)}
	s.responded.Store(true)
	conn.SetPongHandler(func(string) error {
		s.responded.Store(true)
		return nil
	})
	return s
}

func (s *WSSubscriber) ID() string { return s.id }

func (s *WSSubscriber) Send(msg []byte) error { return s.out.push(msg) }

// Probe sends a ping control frame. WriteControl may run concurrently with
// the write pump.
func (s *WSSubscriber) Probe() error {
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *WSSubscriber) Responded() bool { return s.responded.Swap(false) }

// Close stops the write pump, which then closes the connection.
func (s *WSSubscriber) Close() {
	if !s.out.close() {
		return
	}
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

// Run pumps messages until the peer disconnects or the subscriber is closed.
// Inbound messages are discarded; reading is needed to process pongs.
func (s *WSSubscriber) Run() {
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("subscriber_id", s.id).Msg("WebSocket read error")
				}
				return
			}
		}
	}()

	defer s.conn.Close()
	for {
		select {
		case msg, ok := <-s.out.ch:
			if !ok {
				return
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("subscriber_id", s.id).Msg("WebSocket write failed")
				return
			}
		case <-readDone:
			return
		}
	}
}

// StreamSubscriber backs a Server-Sent Events response. The HTTP handler
// drains Events and Pings and calls Ack after each successful write.
type StreamSubscriber struct {
	id        string
	out       *queue
	pings     chan struct{}
	responded atomic.Bool
}

// NewStreamSubscriber creates an SSE subscriber.
func NewStreamSubscriber(id string, bufferSize int) *StreamSubscriber {
	s := &StreamSubscriber{id: id, out: newQueue(bufferSize), pings: make(chan struct{}, 1)}
	s.responded.Store(true)
	return s
}

func (s *StreamSubscriber) ID() string { return s.id }

func (s *StreamSubscriber) Send(msg []byte) error { return s.out.push(msg) }

// Probe asks the handler to write a ping event.
func (s *StreamSubscriber) Probe() error {
	select {
	case s.pings <- struct{}{}:
	default:
	}
	return nil
}

func (s *StreamSubscriber) Responded() bool { return s.responded.Swap(false) }

// Ack records a successful write to the client.
func (s *StreamSubscriber) Ack() { s.responded.Store(true) }

func (s *StreamSubscriber) Close() { s.out.close() }

// Events yields queued messages; it is closed with the subscriber.
func (s *StreamSubscriber) Events() <-chan []byte { return s.out.ch }

// Pings yields probe requests.
func (s *StreamSubscriber) Pings() <-chan struct{} { return s.pings }
