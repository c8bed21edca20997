package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"viatrack/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "fixes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustInsert(t *testing.T, s *Store, lat, lon float64, ts *time.Time) domain.Fix {
	t.Helper()
	fix, err := s.Insert(context.Background(), lat, lon, ts)
	if err != nil {
		t.Fatal(err)
	}
	return fix
}

func TestInsertAssignsMonotonicIDs(t *testing.T) {
	s := newTestStore(t)
	var prev int64
	for i := 0; i < 5; i++ {
		fix := mustInsert(t, s, 11.0, -74.85, nil)
		if fix.ID <= prev {
			t.Fatalf("ids must be strictly increasing: %d after %d", fix.ID, prev)
		}
		prev = fix.ID
	}
}

func TestInsertAssignsTimestampWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	before := time.Now().UTC().Add(-time.Second)
	fix := mustInsert(t, s, 11.0, -74.85, nil)
	after := time.Now().UTC().Add(time.Second)
	if fix.Timestamp.Before(before) || fix.Timestamp.After(after) {
		t.Fatalf("expected insertion-time timestamp, got %v", fix.Timestamp)
	}
}

func TestInsertRoundsCoordinates(t *testing.T) {
	s := newTestStore(t)
	fix := mustInsert(t, s, 11.123456789, -74.987654321, nil)
	if fix.Latitude != 11.1234568 || fix.Longitude != -74.9876543 {
		t.Fatalf("expected 7-digit rounding, got %v, %v", fix.Latitude, fix.Longitude)
	}
}

func TestLatestEmptyStore(t *testing.T) {
	s := newTestStore(t)
	_, ok, err := s.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("empty store must report no latest fix")
	}
}

func TestLatestReturnsHighestID(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, 1, 1, nil)
	want := mustInsert(t, s, 2, 2, nil)
	got, ok, err := s.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.ID != want.ID {
		t.Fatalf("latest = %+v, want id %d", got, want.ID)
	}
}

func TestRangeFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	apr1 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	apr3 := time.Date(2025, 4, 3, 10, 0, 0, 0, time.UTC)
	in := mustInsert(t, s, 11.02, -74.85, &apr1)
	mustInsert(t, s, 11.03, -74.86, &apr3)

	start := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	got, err := s.Range(ctx, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != in.ID {
		t.Fatalf("expected only the 04-01 fix, got %+v", got)
	}
}

func TestRangeAscendingByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	later := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	mustInsert(t, s, 1, 1, &later)
	mustInsert(t, s, 2, 2, &earlier)

	got, err := s.Range(ctx, earlier.Add(-time.Hour), later.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || !got[0].Timestamp.Before(got[1].Timestamp) {
		t.Fatalf("expected timestamp-ascending order, got %+v", got)
	}
}

func TestWithinRadiusIncludesAndExcludes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ts := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	near := mustInsert(t, s, 11.0, -74.85, &ts)
	mustInsert(t, s, 11.1, -74.85, &ts) // ~11km away

	center := domain.Point{Latitude: 11.0, Longitude: -74.85}
	got, err := s.WithinRadius(ctx, center, 1000, ts.Add(-time.Hour), ts.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != near.ID {
		t.Fatalf("expected only the co-located fix, got %+v", got)
	}
}

func TestFixesAreAppendOnlyViaTriggers(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, 11.0, -74.85, nil)

	db, err := s.open()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE fixes SET latitude=0 WHERE id=1`); err == nil || !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only update error, got %v", err)
	}
	if _, err := db.Exec(`DELETE FROM fixes WHERE id=1`); err == nil || !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only delete error, got %v", err)
	}
}

func TestTimeBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, _, ok, err := s.TimeBounds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("empty store must report no bounds")
	}

	early := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)
	mustInsert(t, s, 1, 1, &late)
	mustInsert(t, s, 2, 2, &early)

	first, last, ok, err := s.TimeBounds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !first.Equal(early) || !last.Equal(late) {
		t.Fatalf("bounds = %v..%v, want %v..%v", first, last, early, late)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixes.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	want := mustInsert(t, s, 11.02, -74.85, nil)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, ok, err := s2.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || got.ID != want.ID || got.Latitude != want.Latitude {
		t.Fatalf("unexpected recovered fix: %+v", got)
	}
}

func TestWALModeEnabled(t *testing.T) {
	s := newTestStore(t)
	db, err := s.open()
	if err != nil {
		t.Fatal(err)
	}
	var mode string
	if err := db.QueryRow(`PRAGMA journal_mode;`).Scan(&mode); err != nil && err != sql.ErrNoRows {
		t.Fatal(err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal mode must be WAL, got %q", mode)
	}
}
