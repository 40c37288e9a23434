package geo

import "math"

const earthRadiusKm = 6371.0

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether p lies within WGS84 bounds.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := toRadians(b.Latitude - a.Latitude)
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func DistanceMeters(a, b Point) float64 {
	return DistanceKm(a, b) * 1000
}

// Box is a lat/lng rectangle used as a cheap SQL prefilter. When the box
// crosses the antimeridian MinLng is greater than MaxLng.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// WrapsLng reports whether the longitude range crosses the antimeridian.
func (b Box) WrapsLng() bool {
	return b.MinLng > b.MaxLng
}

func (b Box) Contains(p Point) bool {
	if p.Latitude < b.MinLat || p.Latitude > b.MaxLat {
		return false
	}
	if b.WrapsLng() {
		return p.Longitude >= b.MinLng || p.Longitude <= b.MaxLng
	}
	return p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng
}

// BoundingBox returns a box that contains every point within radiusKm of
// center. Longitude spans widen toward the poles and wrap at ±180.
func BoundingBox(center Point, radiusKm float64) Box {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	box := Box{
		MinLat: math.Max(-90, center.Latitude-dLat),
		MaxLat: math.Min(90, center.Latitude+dLat),
		MinLng: -180,
		MaxLng: 180,
	}

	// near a pole or with a huge radius every longitude qualifies
	cosLat := math.Cos(toRadians(center.Latitude))
	if cosLat <= 1e-6 || box.MinLat == -90 || box.MaxLat == 90 {
		return box
	}
	dLng := dLat / cosLat
	if dLng >= 180 {
		return box
	}

	box.MinLng = wrapLng(center.Longitude - dLng)
	box.MaxLng = wrapLng(center.Longitude + dLng)
	return box
}

func wrapLng(lng float64) float64 {
	switch {
	case lng < -180:
		return lng + 360
	case lng > 180:
		return lng - 360
	}
	return lng
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
