// Package provider defines the contract every external registry adapter implements
// and the ordered registry used to dispatch lookups by region.
//
// Every lookup returns a payload, the provenance of that payload, and an error. A
// nil payload with a nil error means the provider has no data for the query.
package provider

import (
	"context"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// Query carries everything a lookup may need. Most providers only read the
// coordinates; geotechnical searches also read RadiusM and title registries read
// TitleReference.
type Query struct {
	Lat            float64
	Lon            float64
	RadiusM        float64
	TitleReference string
	Address        string
}

// Provider is the base every adapter implements.
type Provider interface {
	// Name identifies the provider in logs, metrics and source records.
	Name() string
	// SupportsRegion is a pure predicate used for region dispatch.
	SupportsRegion(lat, lon float64) bool
}

// ZoningLookup returns district plan zoning.
type ZoningLookup interface {
	Provider
	LookupZoning(ctx context.Context, q Query) (*models.ZoningData, models.Source, error)
}

// HazardLookup returns the regional natural hazard overlay.
type HazardLookup interface {
	Provider
	LookupHazards(ctx context.Context, q Query) (*models.HazardData, models.Source, error)
}

// SeismicLookup enriches hazard data with fault and ground-shaking detail.
type SeismicLookup interface {
	Provider
	LookupSeismic(ctx context.Context, q Query) (*models.SeismicData, models.Source, error)
}

// InfrastructureLookup returns three waters and access information.
type InfrastructureLookup interface {
	Provider
	LookupInfrastructure(ctx context.Context, q Query) (*models.InfrastructureData, models.Source, error)
}

// ClimateLookup returns design climate parameters.
type ClimateLookup interface {
	Provider
	LookupClimate(ctx context.Context, q Query) (*models.ClimateData, models.Source, error)
}

// TitleLookup returns the record of title (the Land category).
type TitleLookup interface {
	Provider
	LookupTitle(ctx context.Context, q Query) (*models.LandData, models.Source, error)
}

// BoreholeLookup searches a borehole database within q.RadiusM.
type BoreholeLookup interface {
	Provider
	LookupBoreholes(ctx context.Context, q Query) ([]models.Borehole, models.Source, error)
}

// PenetrationTestLookup searches cone penetration tests within q.RadiusM.
type PenetrationTestLookup interface {
	Provider
	LookupPenetrationTests(ctx context.Context, q Query) ([]models.PenetrationTest, models.Source, error)
}

// GeotechReportLookup searches published investigation reports within q.RadiusM.
type GeotechReportLookup interface {
	Provider
	LookupGeotechReports(ctx context.Context, q Query) ([]models.GeotechReport, models.Source, error)
}

// Capabilities lists the categories a provider can serve, derived from the
// interfaces it implements.
func Capabilities(p Provider) []models.Category {
	var caps []models.Category
	if _, ok := p.(ZoningLookup); ok {
		caps = append(caps, models.CategoryZoning)
	}
	_, hazard := p.(HazardLookup)
	_, seismic := p.(SeismicLookup)
	if hazard || seismic {
		caps = append(caps, models.CategoryHazard)
	}
	_, bores := p.(BoreholeLookup)
	_, cpts := p.(PenetrationTestLookup)
	_, reports := p.(GeotechReportLookup)
	if bores || cpts || reports {
		caps = append(caps, models.CategoryGeotech)
	}
	if _, ok := p.(InfrastructureLookup); ok {
		caps = append(caps, models.CategoryInfrastructure)
	}
	if _, ok := p.(ClimateLookup); ok {
		caps = append(caps, models.CategoryClimate)
	}
	if _, ok := p.(TitleLookup); ok {
		caps = append(caps, models.CategoryLand)
	}
	return caps
}
