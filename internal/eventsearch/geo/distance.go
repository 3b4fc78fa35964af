package geo

import "math"

// EarthRadiusKM is the mean Earth radius used by Distance.
const EarthRadiusKM = 6371.0

// Point is a coordinate pair in signed degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Distance returns the great-circle distance between a and b in kilometers.
func Distance(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h slightly outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// InBox reports whether p lies strictly inside the box.
func InBox(p Point, minLat, maxLat, minLng, maxLng float64) bool {
	return p.Lat > minLat && p.Lat < maxLat && p.Lng > minLng && p.Lng < maxLng
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
