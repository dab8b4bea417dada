// Package realtime streams couple-scoped change notifications to connected
// partners over websockets, fanned out across instances with Redis pub/sub.
package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	sendBuffer = 64
)

// Publisher publishes couple events for other instances.
type Publisher interface {
	PublishCoupleEvent(coupleToken, event string, payload []byte) error
}

// Subscriber subscribes to a couple's channel and invokes handler for incoming events.
type Subscriber interface {
	SubscribeCouple(coupleToken string, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains coupleToken -> connected clients.
type Hub struct {
	couples map[string]map[string]*Client
	subs    map[string]func()
	mu      sync.RWMutex
	logger  *zap.Logger
	pub     Publisher
	sub     Subscriber
}

// NewHub creates a hub. pub and sub may be nil for a single instance.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		couples: make(map[string]map[string]*Client),
		subs:    make(map[string]func()),
		logger:  logger,
		pub:     pub,
		sub:     sub,
	}
}

// Register adds a client to its couple room, subscribing to the couple's
// channel when it is the first local client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.couples[c.CoupleToken] == nil {
		h.couples[c.CoupleToken] = make(map[string]*Client)
		if h.sub != nil {
			token := c.CoupleToken
			cancel, err := h.sub.SubscribeCouple(token, func(event string, payload []byte) {
				h.Broadcast(token, event, json.RawMessage(payload))
			})
			if err != nil {
				h.logger.Warn("couple subscribe failed", zap.Error(err))
			} else {
				h.subs[token] = cancel
			}
		}
	}
	h.couples[c.CoupleToken][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("partner_id", c.PartnerID))
	h.Notify(c.CoupleToken, "partner_online", map[string]string{"partnerId": c.PartnerID})
}

// Unregister removes a client and closes its send channel. The couple's
// subscription is cancelled when the last local client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.couples[c.CoupleToken]
	if ok {
		if _, present := m[c.ID]; present {
			delete(m, c.ID)
			close(c.send)
		}
		if len(m) == 0 {
			delete(h.couples, c.CoupleToken)
			if cancel, ok := h.subs[c.CoupleToken]; ok {
				cancel()
				delete(h.subs, c.CoupleToken)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("partner_id", c.PartnerID))
	h.Notify(c.CoupleToken, "partner_offline", map[string]string{"partnerId": c.PartnerID})
}

// Broadcast sends a message to the couple's local clients. Slow clients
// whose buffer is full miss the message.
func (h *Hub) Broadcast(coupleToken, event string, payload interface{}) {
	data, ok := encode(payload)
	if !ok {
		return
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.couples[coupleToken] {
		select {
		case c.send <- msg:
		default:
			h.logger.Debug("client buffer full, dropping", zap.String("client_id", c.ID), zap.String("event", event))
		}
	}
}

// Notify delivers an event to every instance's clients of the couple. With
// Redis configured it only publishes, and the subscription performs the
// local broadcast, so no client receives it twice.
func (h *Hub) Notify(coupleToken, event string, payload interface{}) {
	if h.pub == nil {
		h.Broadcast(coupleToken, event, payload)
		return
	}
	data, ok := encode(payload)
	if !ok {
		return
	}
	if err := h.pub.PublishCoupleEvent(coupleToken, event, data); err != nil {
		h.logger.Warn("publish couple event failed", zap.String("event", event), zap.Error(err))
		h.Broadcast(coupleToken, event, json.RawMessage(data))
	}
}

// Online returns how many local clients the couple has.
func (h *Hub) Online(coupleToken string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.couples[coupleToken])
}

func encode(payload interface{}) ([]byte, bool) {
	switch v := payload.(type) {
	case json.RawMessage:
		return v, true
	case []byte:
		return v, true
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}
