package restprovider

import (
	"context"
	"fmt"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/config"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
)

// Capability names double as endpoint paths.
const (
	CapZoning           = "zoning"
	CapHazards          = "hazards"
	CapSeismic          = "seismic"
	CapInfrastructure   = "infrastructure"
	CapClimate          = "climate"
	CapLand             = "land"
	CapBoreholes        = "boreholes"
	CapPenetrationTests = "penetration_tests"
	CapGeotechReports   = "geotech_reports"
)

func isSingleCapability(capability string) bool {
	switch capability {
	case CapZoning, CapHazards, CapSeismic, CapInfrastructure, CapClimate, CapLand:
		return true
	}
	return false
}

// New builds one provider per configured capability. Provider names are
// "<name>/<capability>" so a single endpoint can register several adapters.
func New(cfg config.ProviderConfig, opts ...Option) ([]provider.Provider, error) {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}

	bounds := make([]geo.BoundingBox, 0, len(cfg.Bounds))
	for _, b := range cfg.Bounds {
		bounds = append(bounds, geo.BoundingBox{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon})
	}
	region := provider.NewRegion(bounds...)

	out := make([]provider.Provider, 0, len(cfg.Capabilities))
	for _, capability := range cfg.Capabilities {
		b := base{Region: region, name: cfg.Name + "/" + capability}
		switch capability {
		case CapZoning:
			out = append(out, &zoningAdapter{base: b, lookup: single[models.ZoningData](c, capability)})
		case CapHazards:
			out = append(out, &hazardAdapter{base: b, lookup: single[models.HazardData](c, capability)})
		case CapSeismic:
			out = append(out, &seismicAdapter{base: b, lookup: single[models.SeismicData](c, capability)})
		case CapInfrastructure:
			out = append(out, &infrastructureAdapter{base: b, lookup: single[models.InfrastructureData](c, capability)})
		case CapClimate:
			out = append(out, &climateAdapter{base: b, lookup: single[models.ClimateData](c, capability)})
		case CapLand:
			out = append(out, &titleAdapter{base: b, lookup: single[models.LandData](c, capability)})
		case CapBoreholes:
			out = append(out, &boreholeAdapter{base: b, lookup: many[models.Borehole](c, capability)})
		case CapPenetrationTests:
			out = append(out, &penetrationTestAdapter{base: b, lookup: many[models.PenetrationTest](c, capability)})
		case CapGeotechReports:
			out = append(out, &reportAdapter{base: b, lookup: many[models.GeotechReport](c, capability)})
		default:
			return nil, fmt.Errorf("restprovider: %s: unknown capability %q", cfg.Name, capability)
		}
	}
	return out, nil
}

// NewAll builds the adapters for every configured endpoint, preserving order.
func NewAll(cfgs []config.ProviderConfig, opts ...Option) ([]provider.Provider, error) {
	var all []provider.Provider
	for _, cfg := range cfgs {
		ps, err := New(cfg, opts...)
		if err != nil {
			return nil, err
		}
		all = append(all, ps...)
	}
	return all, nil
}

func single[T any](c *Client, capability string) provider.LookupFunc[T] {
	primary := func(ctx context.Context, q provider.Query) (*T, models.Source, error) {
		var out T
		src, found, err := c.fetch(ctx, capability, q, &out)
		if err != nil || !found {
			return nil, src, err
		}
		return &out, src, nil
	}
	raw, ok := c.fallback[capability]
	if !ok {
		return primary
	}
	return provider.WithFallback(c.name, primary, staticEstimate[T](c, raw))
}

type listFunc[T any] func(ctx context.Context, q provider.Query) ([]T, models.Source, error)

func many[T any](c *Client, capability string) listFunc[T] {
	return func(ctx context.Context, q provider.Query) ([]T, models.Source, error) {
		var out []T
		src, found, err := c.fetch(ctx, capability, q, &out)
		if err != nil || !found {
			return nil, src, err
		}
		return out, src, nil
	}
}

type base struct {
	provider.Region
	name string
}

func (b *base) Name() string { return b.name }

type zoningAdapter struct {
	base
	lookup provider.LookupFunc[models.ZoningData]
}

func (a *zoningAdapter) LookupZoning(ctx context.Context, q provider.Query) (*models.ZoningData, models.Source, error) {
	return a.lookup(ctx, q)
}

type hazardAdapter struct {
	base
	lookup provider.LookupFunc[models.HazardData]
}

func (a *hazardAdapter) LookupHazards(ctx context.Context, q provider.Query) (*models.HazardData, models.Source, error) {
	return a.lookup(ctx, q)
}

type seismicAdapter struct {
	base
	lookup provider.LookupFunc[models.SeismicData]
}

func (a *seismicAdapter) LookupSeismic(ctx context.Context, q provider.Query) (*models.SeismicData, models.Source, error) {
	return a.lookup(ctx, q)
}

type infrastructureAdapter struct {
	base
	lookup provider.LookupFunc[models.InfrastructureData]
}

func (a *infrastructureAdapter) LookupInfrastructure(ctx context.Context, q provider.Query) (*models.InfrastructureData, models.Source, error) {
	return a.lookup(ctx, q)
}

type climateAdapter struct {
	base
	lookup provider.LookupFunc[models.ClimateData]
}

func (a *climateAdapter) LookupClimate(ctx context.Context, q provider.Query) (*models.ClimateData, models.Source, error) {
	return a.lookup(ctx, q)
}

type titleAdapter struct {
	base
	lookup provider.LookupFunc[models.LandData]
}

func (a *titleAdapter) LookupTitle(ctx context.Context, q provider.Query) (*models.LandData, models.Source, error) {
	return a.lookup(ctx, q)
}

type boreholeAdapter struct {
	base
	lookup listFunc[models.Borehole]
}

func (a *boreholeAdapter) LookupBoreholes(ctx context.Context, q provider.Query) ([]models.Borehole, models.Source, error) {
	return a.lookup(ctx, q)
}

type penetrationTestAdapter struct {
	base
	lookup listFunc[models.PenetrationTest]
}

func (a *penetrationTestAdapter) LookupPenetrationTests(ctx context.Context, q provider.Query) ([]models.PenetrationTest, models.Source, error) {
	return a.lookup(ctx, q)
}

type reportAdapter struct {
	base
	lookup listFunc[models.GeotechReport]
}

func (a *reportAdapter) LookupGeotechReports(ctx context.Context, q provider.Query) ([]models.GeotechReport, models.Source, error) {
	return a.lookup(ctx, q)
}
