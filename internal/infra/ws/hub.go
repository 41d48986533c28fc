package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lms-ai-backend/internal/domain/model"
	"lms-ai-backend/internal/domain/ports/adapter"
	"lms-ai-backend/internal/infra/metrics"
)

var _ adapter.EventPublisher = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin from the LMS frontend; the
	// subscription itself is JWT-gated at the web layer.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sendBuffer is the per-client queue depth. A subscriber that falls this far
// behind gets events dropped rather than stalling the publisher.
const sendBuffer = 32

type subKey struct {
	userID int64
	topic  string
}

// client's send channel is never closed: Publish may still hold a snapshot
// referencing the client after it unregistered, and a send on a closed
// channel would panic the callback handler mid-dispatch. Once both the
// publisher snapshot and the writer loop are gone the channel is simply
// garbage collected.
type client struct {
	conn *websocket.Conn
	send chan model.ResultEvent
}

// Hub fans pipeline events out to websocket subscribers. Delivery is
// best-effort at-most-once: no subscriber or a saturated subscriber means
// the event is dropped, never queued for later. Events for one topic reach a
// subscriber in publish order because each client is drained by a single
// writer goroutine.
type Hub struct {
	mu   sync.RWMutex
	subs map[subKey]map[*client]struct{}
	log  *zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	l := logger.With().Str("component", "EventHub").Logger()
	return &Hub{
		subs: make(map[subKey]map[*client]struct{}),
		log:  &l,
	}
}

// Publish delivers the event to every subscriber of (userID, topic). It
// never blocks on a slow subscriber.
func (h *Hub) Publish(userID int64, topic string, event model.ResultEvent) {
	key := subKey{userID: userID, topic: topic}

	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[key]))
	for c := range h.subs[key] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		metrics.IncFanoutDropped("no_subscriber")
		return
	}

	for _, c := range clients {
		select {
		case c.send <- event:
		default:
			metrics.IncFanoutDropped("slow_subscriber")
			h.log.Warn().Str("topic", topic).Msg("subscriber queue full, event dropped")
		}
	}
}

// Subscribe upgrades the request and streams events for (userID, topic)
// until the client disconnects. Blocks for the lifetime of the connection.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, userID int64, topic string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	c := &client{conn: conn, send: make(chan model.ResultEvent, sendBuffer)}
	key := subKey{userID: userID, topic: topic}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*client]struct{})
	}
	h.subs[key][c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs[key], c)
		if len(h.subs[key]) == 0 {
			delete(h.subs, key)
		}
		h.mu.Unlock()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain control and close frames; subscribers never send data.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Error().Err(err).Msg("event marshal failed")
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return nil
			}
		case <-done:
			return nil
		case <-r.Context().Done():
			return nil
		}
	}
}
