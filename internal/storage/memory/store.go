package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"viatrack/internal/domain"
	"viatrack/internal/geo"
	"viatrack/internal/storage"
)

// Store is an in-memory FixStore used for wiring and tests. SetFailWrites
// makes every Insert return a persistence error, which is how liveness-gating
// paths are exercised without a real database fault.
type Store struct {
	mu         sync.Mutex
	fixes      []domain.Fix
	nextID     int64
	failWrites bool
}

func NewStore() *Store {
	return &Store{nextID: 1}
}

// SetFailWrites toggles simulated write failures. Safe to call while an
// ingest loop is inserting concurrently.
func (s *Store) SetFailWrites(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = fail
}

func (s *Store) Insert(_ context.Context, lat, lon float64, ts *time.Time) (domain.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return domain.Fix{}, fmt.Errorf("%w: simulated write failure", storage.ErrPersistence)
	}
	when := time.Now().UTC()
	if ts != nil {
		when = ts.UTC()
	}
	fix := domain.Fix{ID: s.nextID, Latitude: lat, Longitude: lon, Timestamp: when}
	s.nextID++
	s.fixes = append(s.fixes, fix)
	return fix, nil
}

func (s *Store) Latest(context.Context) (domain.Fix, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fixes) == 0 {
		return domain.Fix{}, false, nil
	}
	return s.fixes[len(s.fixes)-1], true, nil
}

func (s *Store) Range(_ context.Context, start, end time.Time) ([]domain.Fix, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Fix
	for _, fix := range s.fixes {
		if !fix.Timestamp.Before(start) && !fix.Timestamp.After(end) {
			out = append(out, fix)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64, start, end time.Time) ([]domain.Fix, error) {
	inRange, err := s.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var out []domain.Fix
	for _, fix := range inRange {
		if geo.Distance(center.Latitude, center.Longitude, fix.Latitude, fix.Longitude) <= radiusMeters {
			out = append(out, fix)
		}
	}
	return out, nil
}

func (s *Store) TimeBounds(context.Context) (time.Time, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fixes) == 0 {
		return time.Time{}, time.Time{}, false, nil
	}
	first, last := s.fixes[0].Timestamp, s.fixes[0].Timestamp
	for _, fix := range s.fixes[1:] {
		if fix.Timestamp.Before(first) {
			first = fix.Timestamp
		}
		if fix.Timestamp.After(last) {
			last = fix.Timestamp
		}
	}
	return first, last, true, nil
}
