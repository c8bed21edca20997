package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"viatrack/internal/domain"
	"viatrack/internal/storage"
)

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if g.state.Active() {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]string{"status": "inactive"})
}

// handleLatest returns a row list with at most one element, the way the
// original device clients expect it. Served from the cache when it holds the
// last broadcast message.
func (g *Gateway) handleLatest(w http.ResponseWriter, r *http.Request) {
	if g.cache != nil {
		if raw, ok, err := g.cache.Get(r.Context()); err != nil {
			log.Printf("api: latest-fix cache read: %v", err)
		} else if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("["))
			w.Write(raw)
			w.Write([]byte("]"))
			return
		}
	}

	fix, ok, err := g.store.Latest(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read latest fix")
		return
	}
	fixes := []domain.Fix{}
	if ok {
		fixes = append(fixes, fix)
	}
	writeJSON(w, fixes)
}

func (g *Gateway) handleBounds(w http.ResponseWriter, r *http.Request) {
	first, last, ok, err := g.store.TimeBounds(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read time bounds")
		return
	}
	var resp struct {
		First *time.Time `json:"first"`
		Last  *time.Time `json:"last"`
	}
	if ok {
		resp.First, resp.Last = &first, &last
	}
	writeJSON(w, resp)
}

func (g *Gateway) handleRange(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseRange(r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fixes, err := g.store.Range(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read fixes")
		return
	}
	if fixes == nil {
		fixes = []domain.Fix{}
	}
	writeJSON(w, fixes)
}

func (g *Gateway) handleRadius(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	center, radius, err := parseRadius(q.Get("lat"), q.Get("lon"), q.Get("radius"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := parseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fixes, err := g.store.WithinRadius(r.Context(), center, radius, start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read fixes")
		return
	}
	if fixes == nil {
		fixes = []domain.Fix{}
	}
	writeJSON(w, fixes)
}

// parseRange accepts RFC-3339 instants or bare YYYY-MM-DD dates, the two
// shapes the SPA sends.
func parseRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	if startRaw == "" || endRaw == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start and end are required", storage.ErrInvalidRange)
	}
	start, err := parseTimeBound(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %v", storage.ErrInvalidRange, err)
	}
	end, err := parseTimeBound(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end: %v", storage.ErrInvalidRange, err)
	}
	return start, end, nil
}

func parseTimeBound(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, errors.New("expected RFC-3339 or YYYY-MM-DD")
	}
	return t.UTC(), nil
}

func parseRadius(latRaw, lonRaw, radiusRaw string) (domain.Point, float64, error) {
	if latRaw == "" || lonRaw == "" || radiusRaw == "" {
		return domain.Point{}, 0, fmt.Errorf("%w: lat, lon and radius are required", storage.ErrInvalidRadius)
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return domain.Point{}, 0, fmt.Errorf("%w: lat: %v", storage.ErrInvalidRadius, err)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return domain.Point{}, 0, fmt.Errorf("%w: lon: %v", storage.ErrInvalidRadius, err)
	}
	radius, err := strconv.ParseFloat(radiusRaw, 64)
	if err != nil {
		return domain.Point{}, 0, fmt.Errorf("%w: radius: %v", storage.ErrInvalidRadius, err)
	}
	if radius <= 0 {
		return domain.Point{}, 0, fmt.Errorf("%w: radius must be positive", storage.ErrInvalidRadius)
	}
	return domain.Point{Latitude: lat, Longitude: lon}, radius, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
