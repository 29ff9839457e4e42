package models

import (
	"fmt"
	"time"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
)

// Source labels describing how a Location was first identified.
const (
	SourceRegistryLookup  = "registry-lookup"
	SourceAddressSearch   = "address-search"
	SourceTitleSearch     = "title-search"
	SourceCoordinateEntry = "coordinate-entry"
)

// DefaultMaxAge is how long a cached section stays fresh unless configured otherwise.
const DefaultMaxAge = 24 * time.Hour

// Location is the canonical record for one physical parcel. It is shared by every
// evaluation that references it and carries one cached section per Category.
type Location struct {
	ID                  string      `json:"id"`
	FormattedAddress    string      `json:"formatted_address"`
	TitleReference      string      `json:"title_reference,omitempty"`
	LegalDescription    string      `json:"legal_description,omitempty"`
	Latitude            float64     `json:"latitude"`
	Longitude           float64     `json:"longitude"`
	CoordinatesResolved bool        `json:"coordinates_resolved"`
	Boundary            []geo.Point `json:"boundary,omitempty"`

	Suburb               string `json:"suburb,omitempty"`
	City                 string `json:"city,omitempty"`
	TerritorialAuthority string `json:"territorial_authority,omitempty"`
	RegionalCouncil      string `json:"regional_council,omitempty"`

	Zoning                 *ZoningData         `json:"zoning,omitempty"`
	ZoningCachedAt         *time.Time          `json:"zoning_cached_at,omitempty"`
	Hazards                *HazardData         `json:"hazards,omitempty"`
	HazardsCachedAt        *time.Time          `json:"hazards_cached_at,omitempty"`
	Geotech                *GeotechData        `json:"geotechnical,omitempty"`
	GeotechCachedAt        *time.Time          `json:"geotechnical_cached_at,omitempty"`
	Infrastructure         *InfrastructureData `json:"infrastructure,omitempty"`
	InfrastructureCachedAt *time.Time          `json:"infrastructure_cached_at,omitempty"`
	Climate                *ClimateData        `json:"climate,omitempty"`
	ClimateCachedAt        *time.Time          `json:"climate_cached_at,omitempty"`
	Land                   *LandData           `json:"land,omitempty"`
	LandCachedAt           *time.Time          `json:"land_cached_at,omitempty"`

	Source          string    `json:"source"`
	ConfidenceScore int       `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Point returns the location's coordinates.
func (l *Location) Point() geo.Point {
	return geo.Point{Lat: l.Latitude, Lon: l.Longitude}
}

// Validate checks that a resolved location carries usable coordinates.
func (l *Location) Validate() error {
	if l.CoordinatesResolved && !geo.IsValidCoordinate(l.Latitude, l.Longitude) {
		return fmt.Errorf("models: coordinates out of range: %f, %f", l.Latitude, l.Longitude)
	}
	return nil
}

// CachedAt returns when the category was last fetched, or nil if never.
func (l *Location) CachedAt(c Category) *time.Time {
	switch c {
	case CategoryZoning:
		return l.ZoningCachedAt
	case CategoryHazard:
		return l.HazardsCachedAt
	case CategoryGeotech:
		return l.GeotechCachedAt
	case CategoryInfrastructure:
		return l.InfrastructureCachedAt
	case CategoryClimate:
		return l.ClimateCachedAt
	case CategoryLand:
		return l.LandCachedAt
	}
	return nil
}

// HasSection reports whether a payload is cached for the category.
func (l *Location) HasSection(c Category) bool {
	switch c {
	case CategoryZoning:
		return l.Zoning != nil
	case CategoryHazard:
		return l.Hazards != nil
	case CategoryGeotech:
		return l.Geotech != nil
	case CategoryInfrastructure:
		return l.Infrastructure != nil
	case CategoryClimate:
		return l.Climate != nil
	case CategoryLand:
		return l.Land != nil
	}
	return false
}

// IsStale is true when the category was never fetched or was fetched more than
// maxAge before now. A non-positive maxAge falls back to DefaultMaxAge.
func (l *Location) IsStale(c Category, now time.Time, maxAge time.Duration) bool {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	at := l.CachedAt(c)
	if at == nil || !l.HasSection(c) {
		return true
	}
	return now.Sub(*at) > maxAge
}

// SetSection stores a payload for the category and stamps its cache time.
// The payload type must match the category.
func (l *Location) SetSection(c Category, payload any, at time.Time) error {
	stamp := at
	switch c {
	case CategoryZoning:
		p, ok := payload.(*ZoningData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Zoning, l.ZoningCachedAt = p, &stamp
	case CategoryHazard:
		p, ok := payload.(*HazardData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Hazards, l.HazardsCachedAt = p, &stamp
	case CategoryGeotech:
		p, ok := payload.(*GeotechData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Geotech, l.GeotechCachedAt = p, &stamp
	case CategoryInfrastructure:
		p, ok := payload.(*InfrastructureData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Infrastructure, l.InfrastructureCachedAt = p, &stamp
	case CategoryClimate:
		p, ok := payload.(*ClimateData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Climate, l.ClimateCachedAt = p, &stamp
	case CategoryLand:
		p, ok := payload.(*LandData)
		if !ok || p == nil {
			return sectionTypeError(c, payload)
		}
		l.Land, l.LandCachedAt = p, &stamp
	default:
		return fmt.Errorf("models: unknown category %q", c)
	}
	return nil
}

func sectionTypeError(c Category, payload any) error {
	return fmt.Errorf("models: payload %T does not match category %q", payload, c)
}
