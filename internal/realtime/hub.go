package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Broker fans published payloads out to every instance of the service.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe blocks, calling deliver for each payload, until ctx is done.
	Subscribe(ctx context.Context, deliver func(topic string, payload []byte)) error
	Close() error
}

const sendBuffer = 32

type subscriber struct {
	send chan []byte
}

func newSubscriber() *subscriber {
	return &subscriber{send: make(chan []byte, sendBuffer)}
}

// Hub tracks which local connections listen to which topics.
// With a nil broker every publish is delivered in-process only.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscriber]struct{}
	broker Broker
	log    *logrus.Entry
}

func NewHub(broker Broker) *Hub {
	return &Hub{
		topics: make(map[string]map[*subscriber]struct{}),
		broker: broker,
		log:    logrus.WithField("component", "realtime"),
	}
}

// Run consumes the broker until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	return h.broker.Subscribe(ctx, h.dispatch)
}

// Publish implements the publisher used by the domain services.
// Failures are logged and swallowed.
func (h *Hub) Publish(ctx context.Context, topic string, ev Event) {
	ev.Topic = topic
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.WithError(err).Warn("marshal event")
		return
	}
	if h.broker == nil {
		h.dispatch(topic, payload)
		return
	}
	if err := h.broker.Publish(ctx, topic, payload); err != nil {
		h.log.WithError(err).WithField("topic", topic).Warn("broker publish failed")
	}
}

func (h *Hub) subscribe(topic string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[topic]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.topics[topic] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) unsubscribe(topic string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.topics[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) unsubscribeAll(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic, set := range h.topics {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// SubscriberCount returns the number of local listeners on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

func (h *Hub) dispatch(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.topics[topic] {
		select {
		case s.send <- payload:
		default:
			// slow consumer; it will catch up on the next re-fetch
			h.log.WithField("topic", topic).Debug("dropping event for slow subscriber")
		}
	}
}

func (h *Hub) Close() error {
	if h.broker == nil {
		return nil
	}
	return h.broker.Close()
}
