package provider

import "github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"

// Region is a reusable SupportsRegion implementation. Embed it in an adapter to
// scope it to one or more bounding boxes; an empty Region covers the whole globe.
type Region struct {
	Bounds []geo.BoundingBox
}

// NewRegion scopes a provider to the given boxes.
func NewRegion(bounds ...geo.BoundingBox) Region {
	return Region{Bounds: bounds}
}

// SupportsRegion reports whether any of the boxes contains the point.
func (r Region) SupportsRegion(lat, lon float64) bool {
	if !geo.IsValidCoordinate(lat, lon) {
		return false
	}
	if len(r.Bounds) == 0 {
		return true
	}
	for _, b := range r.Bounds {
		if b.Contains(lat, lon) {
			return true
		}
	}
	return false
}
