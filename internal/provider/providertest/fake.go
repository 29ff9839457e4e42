// Package providertest provides scriptable fake providers for tests. Each fake
// implements exactly one capability so region dispatch treats it like a real
// single-purpose adapter.
package providertest

import (
	"context"
	"sync/atomic"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
)

// Base carries the name, region and call counter shared by every fake.
type Base struct {
	ProviderName string
	Region       provider.Region
	calls        atomic.Int32
}

// Name implements provider.Provider.
func (b *Base) Name() string { return b.ProviderName }

// SupportsRegion implements provider.Provider.
func (b *Base) SupportsRegion(lat, lon float64) bool { return b.Region.SupportsRegion(lat, lon) }

// Calls returns how many lookups the fake has served.
func (b *Base) Calls() int { return int(b.calls.Load()) }

func (b *Base) hit() { b.calls.Add(1) }

// Source builds a provenance record for the fake.
func (b *Base) Source() models.Source {
	return models.Source{Name: b.ProviderName, URL: "https://example.test/" + b.ProviderName}
}

// Zoning fakes a ZoningLookup.
type Zoning struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.ZoningData, error)
}

// NewZoning returns a zoning fake covering region.
func NewZoning(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.ZoningData, error)) *Zoning {
	return &Zoning{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupZoning implements provider.ZoningLookup.
func (f *Zoning) LookupZoning(ctx context.Context, q provider.Query) (*models.ZoningData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Hazard fakes a HazardLookup.
type Hazard struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.HazardData, error)
}

// NewHazard returns a hazard fake covering region.
func NewHazard(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.HazardData, error)) *Hazard {
	return &Hazard{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupHazards implements provider.HazardLookup.
func (f *Hazard) LookupHazards(ctx context.Context, q provider.Query) (*models.HazardData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Seismic fakes a SeismicLookup.
type Seismic struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.SeismicData, error)
}

// NewSeismic returns a seismic fake covering region.
func NewSeismic(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.SeismicData, error)) *Seismic {
	return &Seismic{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupSeismic implements provider.SeismicLookup.
func (f *Seismic) LookupSeismic(ctx context.Context, q provider.Query) (*models.SeismicData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Infrastructure fakes an InfrastructureLookup.
type Infrastructure struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.InfrastructureData, error)
}

// NewInfrastructure returns an infrastructure fake covering region.
func NewInfrastructure(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.InfrastructureData, error)) *Infrastructure {
	return &Infrastructure{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupInfrastructure implements provider.InfrastructureLookup.
func (f *Infrastructure) LookupInfrastructure(ctx context.Context, q provider.Query) (*models.InfrastructureData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Climate fakes a ClimateLookup.
type Climate struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.ClimateData, error)
}

// NewClimate returns a climate fake covering region.
func NewClimate(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.ClimateData, error)) *Climate {
	return &Climate{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupClimate implements provider.ClimateLookup.
func (f *Climate) LookupClimate(ctx context.Context, q provider.Query) (*models.ClimateData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Title fakes a TitleLookup.
type Title struct {
	Base
	Fn func(ctx context.Context, q provider.Query) (*models.LandData, error)
}

// NewTitle returns a title fake covering region.
func NewTitle(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) (*models.LandData, error)) *Title {
	return &Title{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupTitle implements provider.TitleLookup.
func (f *Title) LookupTitle(ctx context.Context, q provider.Query) (*models.LandData, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Boreholes fakes a BoreholeLookup.
type Boreholes struct {
	Base
	Fn func(ctx context.Context, q provider.Query) ([]models.Borehole, error)
}

// NewBoreholes returns a borehole fake covering region.
func NewBoreholes(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) ([]models.Borehole, error)) *Boreholes {
	return &Boreholes{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupBoreholes implements provider.BoreholeLookup.
func (f *Boreholes) LookupBoreholes(ctx context.Context, q provider.Query) ([]models.Borehole, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// PenetrationTests fakes a PenetrationTestLookup.
type PenetrationTests struct {
	Base
	Fn func(ctx context.Context, q provider.Query) ([]models.PenetrationTest, error)
}

// NewPenetrationTests returns a CPT fake covering region.
func NewPenetrationTests(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) ([]models.PenetrationTest, error)) *PenetrationTests {
	return &PenetrationTests{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupPenetrationTests implements provider.PenetrationTestLookup.
func (f *PenetrationTests) LookupPenetrationTests(ctx context.Context, q provider.Query) ([]models.PenetrationTest, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}

// Reports fakes a GeotechReportLookup.
type Reports struct {
	Base
	Fn func(ctx context.Context, q provider.Query) ([]models.GeotechReport, error)
}

// NewReports returns a report fake covering region.
func NewReports(name string, region provider.Region, fn func(ctx context.Context, q provider.Query) ([]models.GeotechReport, error)) *Reports {
	return &Reports{Base: Base{ProviderName: name, Region: region}, Fn: fn}
}

// LookupGeotechReports implements provider.GeotechReportLookup.
func (f *Reports) LookupGeotechReports(ctx context.Context, q provider.Query) ([]models.GeotechReport, models.Source, error) {
	f.hit()
	data, err := f.Fn(ctx, q)
	return data, f.Source(), err
}
