package storage

import (
	"context"
	"errors"
	"time"

	"viatrack/internal/domain"
)

// ErrPersistence marks store failures that must flip the liveness flag:
// the database is unreachable, the schema could not be initialized, or a
// write was rejected. Wrapped errors carry the driver detail.
var ErrPersistence = errors.New("persistence failure")

// ErrInvalidRange marks a caller-supplied time range that is missing or
// unparseable. Surfaced to the query gateway caller, never fatal.
var ErrInvalidRange = errors.New("invalid time range")

// ErrInvalidRadius marks a missing or non-positive search radius.
var ErrInvalidRadius = errors.New("invalid search radius")

// FixStore is the durable append-only table of GPS fixes. Insert is the only
// mutation; there is no update or delete.
type FixStore interface {
	// Insert appends a fix and returns it with its assigned id. A nil
	// timestamp means the store assigns the insertion time.
	Insert(ctx context.Context, lat, lon float64, ts *time.Time) (domain.Fix, error)

	// Latest returns the most recently inserted fix (highest id), or
	// ok=false when the store is empty.
	Latest(ctx context.Context) (domain.Fix, bool, error)

	// Range returns fixes with timestamp in [start, end], ascending by
	// timestamp.
	Range(ctx context.Context, start, end time.Time) ([]domain.Fix, error)

	// WithinRadius returns the fixes in the time range whose great-circle
	// distance from center is at most radiusMeters, ascending by timestamp.
	WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64, start, end time.Time) ([]domain.Fix, error)

	// TimeBounds returns the earliest and latest stored timestamps, or
	// ok=false when the store is empty.
	TimeBounds(ctx context.Context) (first, last time.Time, ok bool, err error)
}
