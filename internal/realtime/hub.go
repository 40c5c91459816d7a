package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/utils"
)

// EventType is the push event discriminator.
type EventType string

const (
	EventNewOrder    EventType = "new-order"
	EventOrderUpdate EventType = "order-update"
	EventMenuUpdate  EventType = "menu-update"
)

// Event is the envelope pushed to subscribers.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// maxMissedProbes is the number of consecutive unanswered probes after which
// a subscriber is dropped.
const maxMissedProbes = 2

var errHubClosed = errors.New("hub shut down")

// Subscriber is one live push connection.
type Subscriber interface {
	ID() string
	// Send enqueues a message without blocking.
	Send(msg []byte) error
	// Probe asks the peer to prove it is alive.
	Probe() error
	// Responded reports whether the peer answered since the previous call
	// and resets the flag.
	Responded() bool
	Close()
}

type member struct {
	sub    Subscriber
	missed int
}

// Hub is the process-wide subscriber registry. The subscriber set is only
// locked while it is mutated or copied; sends happen on the copy.
type Hub struct {
	mu      sync.RWMutex
	members map[string]*member

	lifeMu  sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	probeInterval time.Duration
}

// NewHub creates a hub that probes subscribers every probeInterval.
func NewHub(probeInterval time.Duration) *Hub {
	return &Hub{
		members:       make(map[string]*member),
		probeInterval: probeInterval,
	}
}

// Start launches the probe loop. Calling Start on a running hub is a no-op.
func (h *Hub) Start(ctx context.Context) error {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()

	if h.closed {
		return errHubClosed
	}
	if h.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.running = true

	go h.probeLoop(loopCtx, h.done)
	log.Info().Dur("probe_interval", h.probeInterval).Msg("Broadcast hub started")
	return nil
}

// Shutdown stops the probe loop and disconnects every subscriber.
// A shut down hub cannot be restarted.
func (h *Hub) Shutdown() {
	h.lifeMu.Lock()
	h.closed = true
	wasRunning := h.running
	h.running = false
	cancel, done := h.cancel, h.done
	h.lifeMu.Unlock()

	if wasRunning {
		cancel()
		<-done
	}

	h.mu.Lock()
	members := h.members
	h.members = make(map[string]*member)
	h.mu.Unlock()

	for _, m := range members {
		m.sub.Close()
	}
	log.Info().Int("dropped", len(members)).Msg("Broadcast hub stopped")
}

// Running reports whether the probe loop is active.
func (h *Hub) Running() bool {
	h.lifeMu.Lock()
	defer h.lifeMu.Unlock()
	return h.running
}

// Register adds a subscriber.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	h.members[sub.ID()] = &member{sub: sub}
	total := len(h.members)
	h.mu.Unlock()

	log.Info().Str("subscriber_id", sub.ID()).Int("total_subscribers", total).Msg("Subscriber connected")
}

// Unregister removes and closes a subscriber.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	m, ok := h.members[id]
	if ok {
		delete(h.members, id)
	}
	total := len(h.members)
	h.mu.Unlock()

	if ok {
		m.sub.Close()
		log.Info().Str("subscriber_id", id).Int("total_subscribers", total).Msg("Subscriber disconnected")
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members)
}

// Publish fans an event out to every subscriber and returns how many
// accepted it. Individual send failures are logged and skipped. When the hub
// is not running, one restart is attempted before utils.ErrBroadcastFailure
// is returned.
func (h *Hub) Publish(event Event) (int, error) {
	if !h.Running() {
		log.Warn().Str("event", string(event.Type)).Msg("Broadcast hub not running, reinitializing")
		if err := h.Start(context.Background()); err != nil {
			return 0, fmt.Errorf("%w: %v", utils.ErrBroadcastFailure, err)
		}
	}

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("%w: marshal %s: %v", utils.ErrBroadcastFailure, event.Type, err)
	}

	delivered := 0
	for _, sub := range h.snapshot() {
		if err := sub.Send(data); err != nil {
			log.Warn().Err(err).Str("subscriber_id", sub.ID()).Str("event", string(event.Type)).Msg("Dropping event for subscriber")
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (h *Hub) snapshot() []Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs := make([]Subscriber, 0, len(h.members))
	for _, m := range h.members {
		subs = append(subs, m.sub)
	}
	return subs
}

func (h *Hub) probeLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(h.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.probe()
		case <-ctx.Done():
			h.lifeMu.Lock()
			stopped := h.running && h.done == done
			if stopped {
				h.running = false
			}
			h.lifeMu.Unlock()
			if stopped {
				log.Warn().Msg("Broadcast hub context ended, probing stopped")
			}
			return
		}
	}
}

// probe checks the answer to the previous probe, drops subscribers that
// missed maxMissedProbes in a row, then probes the rest again.
func (h *Hub) probe() {
	var stale []string
	var live []Subscriber

	h.mu.Lock()
	for id, m := range h.members {
		if m.sub.Responded() {
			m.missed = 0
		} else {
			m.missed++
		}
		if m.missed >= maxMissedProbes {
			stale = append(stale, id)
			continue
		}
		live = append(live, m.sub)
	}
	h.mu.Unlock()

	for _, id := range stale {
		log.Warn().Str("subscriber_id", id).Msg("Subscriber missed liveness probes")
		h.Unregister(id)
	}

	for _, sub := range live {
		if err := sub.Probe(); err != nil {
			log.Debug().Err(err).Str("subscriber_id", sub.ID()).Msg("Probe failed")
		}
	}
}
