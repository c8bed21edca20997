package api

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// The relay serves unauthenticated public map clients.
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// wsSink adapts one WebSocket connection to fanout.Sink. gorilla connections
// allow a single concurrent writer, so sends are serialized with a mutex.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// handleWebSocket upgrades the connection and keeps it subscribed until the
// client goes away. The read loop exists only to observe close/error; clients
// never send application data.
func (g *Gateway) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("api: websocket upgrade: %v", err)
		return
	}
	log.Printf("api: websocket client connected from %s", r.RemoteAddr)

	sink := &wsSink{conn: conn}
	g.hub.Subscribe(sink)
	defer func() {
		g.hub.Unsubscribe(sink)
		_ = sink.Close()
		log.Printf("api: websocket client %s disconnected", r.RemoteAddr)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
