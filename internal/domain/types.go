package domain

import "time"

// Fix is one persisted GPS observation. The id is assigned by the store on
// insert and is strictly increasing in insertion order.
type Fix struct {
	ID        int64     `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Point is a geographic coordinate in decimal degrees (WGS 84).
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// CoordinatePrecision is the number of fractional digits kept for stored
// coordinates, matching the DECIMAL(10,7) column of the original schema.
const CoordinatePrecision = 7
