package geo

import "math"

const earthRadiusMeters = 6_371_000

// Point is a geographic coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Nearest returns the index of the point closest to (lat, lng).
// Ties go to the earliest point. Returns -1 if points is empty.
func Nearest(points []Point, lat, lng float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range points {
		d := Haversine(lat, lng, p.Lat, p.Lng)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// MetersToKilometers converts meters to kilometers.
func MetersToKilometers(m float64) float64 {
	return m / 1000
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
