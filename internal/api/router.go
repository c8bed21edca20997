package api

import (
	"net/http"

	"viatrack/internal/cache"
	"viatrack/internal/fanout"
	"viatrack/internal/health"
	"viatrack/internal/storage"
)

// Gateway is the thin HTTP surface over the fix store's read queries, the
// health probe, and the WebSocket subscription endpoint.
type Gateway struct {
	store storage.FixStore
	state *health.State
	hub   *fanout.Hub
	cache *cache.LatestFix // optional, nil when redis is not configured
}

func NewGateway(store storage.FixStore, state *health.State, hub *fanout.Hub, latest *cache.LatestFix) *Gateway {
	return &Gateway{store: store, state: state, hub: hub, cache: latest}
}

// Router builds the HTTP handler. staticDir, when non-empty, is served at the
// root for the companion SPA.
func (g *Gateway) Router(staticDir string) http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.Handler {
		return CORSMiddleware(LoggingMiddleware(h))
	}

	mux.Handle("/health", wrap(g.handleHealth))
	mux.Handle("/api/fixes/latest", wrap(get(g.handleLatest)))
	mux.Handle("/api/fixes/bounds", wrap(get(g.handleBounds)))
	mux.Handle("/api/fixes/range", wrap(get(g.handleRange)))
	mux.Handle("/api/fixes/radius", wrap(get(g.handleRadius)))
	mux.Handle("/ws", http.HandlerFunc(g.handleWebSocket))

	if staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	}
	return mux
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
