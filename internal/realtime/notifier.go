package realtime

import (
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/menu_api/internal/models"
)

// Notifier is the interface services use to emit push events.
type Notifier interface {
	NotifyNewOrder(order *models.OrderSummary, menu []models.MenuItem)
	NotifyOrderUpdate(order *models.OrderSummary)
	NotifyMenuUpdate(menu []models.MenuItem)
}

// NewOrderPayload is the data of a new-order event.
type NewOrderPayload struct {
	Order           *models.OrderSummary `json:"order"`
	UpdatedProducts []models.MenuItem    `json:"updatedProducts"`
}

// HubNotifier implements Notifier using the Hub. Publishing never blocks the
// caller on subscribers and failures are only logged.
type HubNotifier struct {
	hub *Hub
}

// NewHubNotifier creates a notifier backed by the given Hub.
func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyNewOrder(order *models.OrderSummary, menu []models.MenuItem) {
	n.publish(Event{Type: EventNewOrder, Data: NewOrderPayload{Order: order, UpdatedProducts: menu}})
}

func (n *HubNotifier) NotifyOrderUpdate(order *models.OrderSummary) {
	n.publish(Event{Type: EventOrderUpdate, Data: order})
}

func (n *HubNotifier) NotifyMenuUpdate(menu []models.MenuItem) {
	n.publish(Event{Type: EventMenuUpdate, Data: menu})
}

func (n *HubNotifier) publish(ev Event) {
	delivered, err := n.hub.Publish(ev)
	if err != nil {
		log.Error().Err(err).Str("event", string(ev.Type)).Msg("Broadcast failed")
		return
	}
	log.Debug().Str("event", string(ev.Type)).Int("delivered", delivered).Msg("Broadcast sent")
}

// NopNotifier is a no-op implementation for when push is not needed.
type NopNotifier struct{}

func (NopNotifier) NotifyNewOrder(order *models.OrderSummary, menu []models.MenuItem) {}
func (NopNotifier) NotifyOrderUpdate(order *models.OrderSummary)                      {}
func (NopNotifier) NotifyMenuUpdate(menu []models.MenuItem)                           {}
