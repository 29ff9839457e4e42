package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// SRID of every geometry written to PostGIS.
const SRID = 4326

// EncodePolygon converts a boundary ring to EWKB with SRID 4326. The ring is closed
// if the caller left it open. An empty ring encodes to nil.
func EncodePolygon(ring []Point) ([]byte, error) {
	if len(ring) == 0 {
		return nil, nil
	}
	if len(ring) < 3 {
		return nil, fmt.Errorf("geo: polygon needs at least 3 points, got %d", len(ring))
	}

	flat := make([]float64, 0, (len(ring)+1)*2)
	for _, p := range ring {
		flat = append(flat, p.Lon, p.Lat)
	}
	if first, last := ring[0], ring[len(ring)-1]; first != last {
		flat = append(flat, first.Lon, first.Lat)
	}

	poly := geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)}).SetSRID(SRID)
	data, err := ewkb.Marshal(poly, ewkb.NDR)
	if err != nil {
		return nil, fmt.Errorf("geo: encode polygon: %w", err)
	}
	return data, nil
}

// DecodePolygon reads the outer ring of an EWKB polygon. The closing point is
// dropped so the result round-trips with EncodePolygon.
func DecodePolygon(data []byte) ([]Point, error) {
	if len(data) == 0 {
		return nil, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("geo: decode polygon: %w", err)
	}
	poly, ok := g.(*geom.Polygon)
	if !ok {
		return nil, fmt.Errorf("geo: expected polygon, got %T", g)
	}
	if poly.NumLinearRings() == 0 {
		return nil, nil
	}

	coords := poly.LinearRing(0).Coords()
	if n := len(coords); n > 1 && coords[0].Equal(geom.XY, coords[n-1]) {
		coords = coords[:n-1]
	}
	ring := make([]Point, 0, len(coords))
	for _, c := range coords {
		ring = append(ring, Point{Lat: c.Y(), Lon: c.X()})
	}
	return ring, nil
}
