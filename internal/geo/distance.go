package geo

import "math"

// EarthRadiusMeters is the mean Earth radius of the spherical model used for
// all distance computations. Radius queries are defined against this model,
// not an ellipsoid.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two points
// given in decimal degrees, using the spherical law of cosines.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	c := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	// Rounding can push the cosine a hair outside [-1, 1]; Acos would return NaN.
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return EarthRadiusMeters * math.Acos(c)
}
