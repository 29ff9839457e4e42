// Package geo holds the spherical-Earth helpers used by location resolution and
// provider region dispatch. Everything here is pure and safe for concurrent use.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// boxMargin keeps bounding boxes from clipping the circle through float rounding.
const boxMargin = 1.000001

// metersPerDegreeLat is the length of one degree of latitude on the sphere above.
const metersPerDegreeLat = EarthRadiusMeters * math.Pi / 180

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BoundingBox is a lat/lon rectangle used for coarse pre-filtering.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// CountryBounds covers the New Zealand mainland and near islands.
var CountryBounds = BoundingBox{MinLat: -47.5, MaxLat: -34.0, MinLon: 166.0, MaxLon: 178.9}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between two points using the
// haversine formula.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a marginally above 1 for antipodal points
	a = math.Min(1, math.Max(0, a))

	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NewBoundingBox returns a rectangle that always contains the circle of radiusM
// around (lat, lon). Near the poles or the antimeridian the box widens to the full
// longitude range instead of wrapping.
func NewBoundingBox(lat, lon, radiusM float64) BoundingBox {
	if radiusM < 0 {
		radiusM = 0
	}
	dLat := radiusM / metersPerDegreeLat * boxMargin

	box := BoundingBox{
		MinLat: math.Max(-90, lat-dLat),
		MaxLat: math.Min(90, lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	// the widest longitude span of the circle sits at the box edge closest to a pole
	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cosLat := math.Cos(toRadians(maxAbsLat))
	if box.MaxLat >= 90 || box.MinLat <= -90 || cosLat < 1e-9 {
		return box
	}

	dLon := dLat / cosLat
	if lon-dLon < -180 || lon+dLon > 180 {
		return box
	}
	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Centroid returns the arithmetic mean of the points. An empty slice yields the
// zero Point.
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lon: sumLon / n}
}

// PolygonAreaM2 computes the area of a ring with the shoelace formula after
// projecting onto a local plane centred on the centroid. Precision degrades past
// a few kilometres across. The ring may or may not repeat its first point.
func PolygonAreaM2(points []Point) float64 {
	if len(points) < 3 {
		return 0
	}
	c := Centroid(points)
	metersPerDegreeLon := metersPerDegreeLat * math.Cos(toRadians(c.Lat))

	var sum float64
	for i := range points {
		j := (i + 1) % len(points)
		xi := (points[i].Lon - c.Lon) * metersPerDegreeLon
		yi := (points[i].Lat - c.Lat) * metersPerDegreeLat
		xj := (points[j].Lon - c.Lon) * metersPerDegreeLon
		yj := (points[j].Lat - c.Lat) * metersPerDegreeLat
		sum += xi*yj - xj*yi
	}
	return math.Abs(sum) / 2
}

// IsWithinRadius reports whether two points are no more than radiusM apart.
func IsWithinRadius(lat1, lon1, lat2, lon2, radiusM float64) bool {
	return DistanceMeters(lat1, lon1, lat2, lon2) <= radiusM
}

// IsValidCoordinate checks latitude and longitude ranges.
func IsValidCoordinate(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// IsInCountryBounds reports whether the point falls inside CountryBounds.
func IsInCountryBounds(lat, lon float64) bool {
	return IsValidCoordinate(lat, lon) && CountryBounds.Contains(lat, lon)
}
