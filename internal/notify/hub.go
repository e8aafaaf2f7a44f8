package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub fans events out to in-process subscribers, typically SSE connections.
// Send never blocks: a subscriber whose buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	buffer      int

	subscribersGauge prometheus.Gauge
	droppedCounter   prometheus.Counter
}

func NewHub(buffer int, registerer prometheus.Registerer) *Hub {
	factory := promauto.With(registerer)
	return &Hub{
		subscribers: map[chan Event]struct{}{},
		buffer:      buffer,
		subscribersGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "preview_subscribers",
			Help: "Number of clients subscribed to preview events.",
		}),
		droppedCounter: factory.NewCounter(prometheus.CounterOpts{
			Name: "preview_events_dropped_total",
			Help: "Number of preview events dropped because a subscriber was not keeping up.",
		}),
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be called to release it;
// it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	h.subscribersGauge.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
			close(ch)
			h.subscribersGauge.Dec()
		})
	}
}

func (h *Hub) Send(ctx context.Context, event string, payload any) error {
	e := Event{Name: event, Data: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers {
		select {
		case ch <- e:
		default:
			h.droppedCounter.Inc()
			slog.Warn("dropping event for slow subscriber", "event", event)
		}
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
