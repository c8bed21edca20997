package fanout

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"viatrack/internal/domain"
)

// Sink is one live delivery channel: a WebSocket client, a broker relay, or
// the latest-fix cache. Send delivers one wire message; the first failed send
// removes the sink from the hub.
type Sink interface {
	Send(msg []byte) error
	Close() error
}

// Message is the wire shape broadcast for every stored fix.
type Message struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

// Hub owns the set of live subscribers and broadcasts each newly stored fix
// to all of them. Membership changes interleave safely with an in-progress
// broadcast: the registry is snapshotted under the lock and sends happen
// outside it. There is no delivery guarantee; a sink that fails mid-broadcast
// misses that message and all later ones.
type Hub struct {
	mu    sync.Mutex
	sinks map[Sink]struct{}
}

func NewHub() *Hub {
	return &Hub{sinks: make(map[Sink]struct{})}
}

func (h *Hub) Subscribe(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks[s] = struct{}{}
}

func (h *Hub) Unsubscribe(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sinks, s)
}

// SubscriberCount reports current registry size.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

// Broadcast serializes the fix once and sends it to every registered sink.
// Broadcast runs synchronously on the ingest path, so message order follows
// store insertion order.
func (h *Hub) Broadcast(fix domain.Fix) {
	// RFC3339Nano keeps the broadcast timestamp identical to the REST
	// encoding of the same fix, including store-assigned sub-second times.
	msg, err := json.Marshal(Message{
		ID:        fix.ID,
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Timestamp: fix.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		log.Printf("fanout: marshal fix %d: %v", fix.ID, err)
		return
	}

	h.mu.Lock()
	snapshot := make([]Sink, 0, len(h.sinks))
	for s := range h.sinks {
		snapshot = append(snapshot, s)
	}
	h.mu.Unlock()

	for _, s := range snapshot {
		if err := s.Send(msg); err != nil {
			log.Printf("fanout: dropping subscriber after send error: %v", err)
			h.Unsubscribe(s)
			_ = s.Close()
		}
	}
}
