package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"viatrack/internal/domain"
	"viatrack/internal/geo"
	"viatrack/internal/storage"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fixes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	timestamp_utc_ns INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fixes_timestamp ON fixes(timestamp_utc_ns);

CREATE TRIGGER IF NOT EXISTS trg_fixes_no_update
BEFORE UPDATE ON fixes
BEGIN
	SELECT RAISE(ABORT, 'fixes are append-only: UPDATE forbidden');
END;

CREATE TRIGGER IF NOT EXISTS trg_fixes_no_delete
BEFORE DELETE ON fixes
BEGIN
	SELECT RAISE(ABORT, 'fixes are append-only: DELETE forbidden');
END;
`

// Store is the durable fix table. The database is opened lazily on first use
// so a store whose file is unavailable still constructs; the failure surfaces
// as a persistence error from the first operation, which lets the process
// start degraded instead of refusing to start.
type Store struct {
	path string

	mu sync.Mutex
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	return &Store{path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ping forces the lazy open so startup can detect an unreachable database.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", storage.ErrPersistence, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, lat, lon float64, ts *time.Time) (domain.Fix, error) {
	db, err := s.open()
	if err != nil {
		return domain.Fix{}, err
	}

	when := time.Now().UTC()
	if ts != nil {
		when = ts.UTC()
	}
	lat = roundCoordinate(lat)
	lon = roundCoordinate(lon)

	res, err := db.ExecContext(ctx,
		`INSERT INTO fixes(latitude, longitude, timestamp_utc_ns) VALUES(?, ?, ?)`,
		lat, lon, when.UnixNano())
	if err != nil {
		return domain.Fix{}, fmt.Errorf("%w: insert fix: %v", storage.ErrPersistence, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Fix{}, fmt.Errorf("%w: last insert id: %v", storage.ErrPersistence, err)
	}
	return domain.Fix{ID: id, Latitude: lat, Longitude: lon, Timestamp: when}, nil
}

func (s *Store) Latest(ctx context.Context) (domain.Fix, bool, error) {
	db, err := s.open()
	if err != nil {
		return domain.Fix{}, false, err
	}

	row := db.QueryRowContext(ctx, `
SELECT id, latitude, longitude, timestamp_utc_ns
FROM fixes
ORDER BY id DESC
LIMIT 1`)
	fix, err := scanFix(row.Scan)
	if err == sql.ErrNoRows {
		return domain.Fix{}, false, nil
	}
	if err != nil {
		return domain.Fix{}, false, fmt.Errorf("%w: latest: %v", storage.ErrPersistence, err)
	}
	return fix, true, nil
}

func (s *Store) Range(ctx context.Context, start, end time.Time) ([]domain.Fix, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
SELECT id, latitude, longitude, timestamp_utc_ns
FROM fixes
WHERE timestamp_utc_ns BETWEEN ? AND ?
ORDER BY timestamp_utc_ns ASC`, start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("%w: range: %v", storage.ErrPersistence, err)
	}
	defer rows.Close()

	var out []domain.Fix
	for rows.Next() {
		fix, err := scanFix(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%w: range scan: %v", storage.ErrPersistence, err)
		}
		out = append(out, fix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: range rows: %v", storage.ErrPersistence, err)
	}
	return out, nil
}

// WithinRadius narrows by time range in SQL and applies the spherical
// distance filter in Go: the sqlite driver carries no geospatial functions,
// and the single-table scale makes a post-filter over the time window cheap.
func (s *Store) WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64, start, end time.Time) ([]domain.Fix, error) {
	inRange, err := s.Range(ctx, start, end)
	if err != nil {
		return nil, err
	}
	var out []domain.Fix
	for _, fix := range inRange {
		d := geo.Distance(center.Latitude, center.Longitude, fix.Latitude, fix.Longitude)
		if d <= radiusMeters {
			out = append(out, fix)
		}
	}
	return out, nil
}

func (s *Store) TimeBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	db, err := s.open()
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}

	var first, last sql.NullInt64
	err = db.QueryRowContext(ctx, `SELECT MIN(timestamp_utc_ns), MAX(timestamp_utc_ns) FROM fixes`).Scan(&first, &last)
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("%w: time bounds: %v", storage.ErrPersistence, err)
	}
	if !first.Valid || !last.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return time.Unix(0, first.Int64).UTC(), time.Unix(0, last.Int64).UTC(), true, nil
}

func (s *Store) open() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", storage.ErrPersistence, s.path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: %s: %v", storage.ErrPersistence, p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: init schema: %v", storage.ErrPersistence, err)
	}
	s.db = db
	return db, nil
}

func scanFix(scan func(...any) error) (domain.Fix, error) {
	var fix domain.Fix
	var ns int64
	if err := scan(&fix.ID, &fix.Latitude, &fix.Longitude, &ns); err != nil {
		return domain.Fix{}, err
	}
	fix.Timestamp = time.Unix(0, ns).UTC()
	return fix, nil
}

func roundCoordinate(v float64) float64 {
	const scale = 1e7 // domain.CoordinatePrecision fractional digits
	return math.Round(v*scale) / scale
}
