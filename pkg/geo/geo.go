package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point is a usable WGS84 coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm returns the great-circle distance between two points (Haversine).
func DistanceKm(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// DeliveryFee computes a flat base fee plus a per-km charge, rounded to two decimals.
func DeliveryFee(distanceKm, baseFee, perKm float64) float64 {
	fee := baseFee + distanceKm*perKm
	return math.Round(fee*100) / 100
}

// ETAMinutes estimates travel time at the given average speed. Speeds at or
// below zero fall back to 25 km/h (dense urban traffic).
func ETAMinutes(distanceKm, avgSpeedKmh float64) int {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = 25
	}
	return int(math.Ceil(distanceKm / avgSpeedKmh * 60))
}

// FarePerPerson splits a total fare across seats, rounding up so the pooled
// amount always covers the total.
func FarePerPerson(totalFare float64, seats int) float64 {
	if seats <= 0 {
		return totalFare
	}
	return math.Ceil(totalFare / float64(seats))
}
