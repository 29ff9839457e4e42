package provider_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider/providertest"
)

var (
	canterbury = provider.NewRegion(geo.BoundingBox{MinLat: -44.5, MaxLat: -42.0, MinLon: 170.0, MaxLon: 174.0})
	wellington = provider.NewRegion(geo.BoundingBox{MinLat: -41.6, MaxLat: -40.6, MinLon: 174.5, MaxLon: 176.0})
	nationwide = provider.NewRegion(geo.CountryBounds)
)

func noZoning(context.Context, provider.Query) (*models.ZoningData, error) { return nil, nil }

func noClimate(context.Context, provider.Query) (*models.ClimateData, error) { return nil, nil }

func TestNewRegistry(t *testing.T) {
	a := providertest.NewZoning("ccc-plan", canterbury, noZoning)
	b := providertest.NewZoning("wcc-plan", wellington, noZoning)

	t.Run("keeps registration order", func(t *testing.T) {
		reg, err := provider.NewRegistry(a, b)
		require.NoError(t, err)
		require.Equal(t, 2, reg.Len())
		names := []string{reg.All()[0].Name(), reg.All()[1].Name()}
		assert.Equal(t, []string{"ccc-plan", "wcc-plan"}, names)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		dup := providertest.NewZoning("ccc-plan", nationwide, noZoning)
		_, err := provider.NewRegistry(a, dup)
		assert.Error(t, err)
	})

	t.Run("rejects nil", func(t *testing.T) {
		_, err := provider.NewRegistry(a, nil)
		assert.Error(t, err)
	})
}

func TestFirstMatch(t *testing.T) {
	ccc := providertest.NewZoning("ccc-plan", canterbury, noZoning)
	national := providertest.NewZoning("national-plan", nationwide, noZoning)
	climate := providertest.NewClimate("niwa", nationwide, noClimate)

	reg, err := provider.NewRegistry(climate, ccc, national)
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lon float64
		want     string
		found    bool
	}{
		{name: "regional provider wins where both cover", lat: -43.5320, lon: 172.6362, want: "ccc-plan", found: true},
		{name: "falls through to national", lat: -41.2865, lon: 174.7762, want: "national-plan", found: true},
		{name: "nothing outside country", lat: 51.5, lon: -0.12, found: false},
		{name: "invalid coordinate", lat: 95, lon: 0, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := provider.FirstMatch[provider.ZoningLookup](reg, tt.lat, tt.lon)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, got.Name())
			}
		})
	}
}

func TestFirstMatch_ReversedOrder(t *testing.T) {
	ccc := providertest.NewZoning("ccc-plan", canterbury, noZoning)
	national := providertest.NewZoning("national-plan", nationwide, noZoning)

	reg, err := provider.NewRegistry(national, ccc)
	require.NoError(t, err)

	got, ok := provider.FirstMatch[provider.ZoningLookup](reg, -43.5320, 172.6362)
	require.True(t, ok)
	assert.Equal(t, "national-plan", got.Name())
}

func TestAllMatches(t *testing.T) {
	niwa := providertest.NewClimate("niwa", nationwide, noClimate)
	ecan := providertest.NewClimate("ecan-climate", canterbury, noClimate)
	gw := providertest.NewClimate("gw-climate", wellington, noClimate)
	zoning := providertest.NewZoning("ccc-plan", canterbury, noZoning)

	reg, err := provider.NewRegistry(niwa, zoning, ecan, gw)
	require.NoError(t, err)

	got := provider.AllMatches[provider.ClimateLookup](reg, -43.5320, 172.6362)
	require.Len(t, got, 2)
	assert.Equal(t, "niwa", got[0].Name())
	assert.Equal(t, "ecan-climate", got[1].Name())

	assert.Empty(t, provider.AllMatches[provider.ClimateLookup](nil, -43.5, 172.6))
	assert.Empty(t, provider.AllMatches[provider.TitleLookup](reg, -43.5, 172.6))
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name string
		p    provider.Provider
		want []models.Category
	}{
		{name: "zoning", p: providertest.NewZoning("z", nationwide, noZoning), want: []models.Category{models.CategoryZoning}},
		{name: "seismic counts as hazard", p: providertest.NewSeismic("gns", nationwide, nil), want: []models.Category{models.CategoryHazard}},
		{name: "cpt counts as geotech", p: providertest.NewPenetrationTests("nzgd", nationwide, nil), want: []models.Category{models.CategoryGeotech}},
		{name: "title counts as land", p: providertest.NewTitle("linz", nationwide, nil), want: []models.Category{models.CategoryLand}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, provider.Capabilities(tt.p))
		})
	}
}

func TestRegion_SupportsRegion(t *testing.T) {
	assert.True(t, provider.Region{}.SupportsRegion(51.5, -0.12))
	assert.False(t, provider.Region{}.SupportsRegion(91, 0))
	assert.True(t, canterbury.SupportsRegion(-43.5, 172.6))
	assert.False(t, canterbury.SupportsRegion(-41.28, 174.77))

	multi := provider.NewRegion(canterbury.Bounds[0], wellington.Bounds[0])
	assert.True(t, multi.SupportsRegion(-41.28, 174.77))
}
