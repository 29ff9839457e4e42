package models

import "time"

// Source records where a cached section came from.
type Source struct {
	Name        string    `json:"name"`
	URL         string    `json:"url,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Notes       string    `json:"notes,omitempty"`
}

// ZoningData is the district plan zoning for a parcel.
type ZoningData struct {
	ZoneCode        string   `json:"zone_code"`
	ZoneName        string   `json:"zone_name,omitempty"`
	DistrictPlan    string   `json:"district_plan,omitempty"`
	Overlays        []string `json:"overlays,omitempty"`
	MaxHeightM      *float64 `json:"max_height_m,omitempty"`
	MaxSiteCoverage *float64 `json:"max_site_coverage_pct,omitempty"`
	MinLotSizeM2    *float64 `json:"min_lot_size_m2,omitempty"`
	HeritageListed  bool     `json:"heritage_listed"`
	Source          Source   `json:"source"`
}

// SeismicData comes from a fault and ground-shaking specialist registry.
type SeismicData struct {
	NearestFault           string   `json:"nearest_fault,omitempty"`
	FaultDistanceKm        *float64 `json:"fault_distance_km,omitempty"`
	PeakGroundAcceleration *float64 `json:"peak_ground_acceleration_g,omitempty"`
	SiteSubsoilClass       string   `json:"site_subsoil_class,omitempty"`
	Source                 Source   `json:"source"`
}

// HazardData is the natural hazard overlay for a parcel.
type HazardData struct {
	FloodZone            string       `json:"flood_zone"`
	LiquefactionCategory string       `json:"liquefaction_category,omitempty"`
	TsunamiZone          string       `json:"tsunami_zone,omitempty"`
	LandslideRisk        string       `json:"landslide_risk,omitempty"`
	CoastalErosion       bool         `json:"coastal_erosion"`
	Seismic              *SeismicData `json:"seismic,omitempty"`
	Source               Source       `json:"source"`
}

// Borehole is one logged drill hole from a geotechnical database.
type Borehole struct {
	ID          string   `json:"id"`
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	DepthM      float64  `json:"depth_m"`
	DistanceM   float64  `json:"distance_m"`
	WaterTableM *float64 `json:"water_table_m,omitempty"`
	Source      string   `json:"source"`
}

// PenetrationTest is a cone penetration test record.
type PenetrationTest struct {
	ID        string  `json:"id"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	DepthM    float64 `json:"depth_m"`
	DistanceM float64 `json:"distance_m"`
	Source    string  `json:"source"`
}

// GeotechReport references a published investigation report.
type GeotechReport struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	URL       string     `json:"url,omitempty"`
	Published *time.Time `json:"published,omitempty"`
	DistanceM float64    `json:"distance_m"`
	Source    string     `json:"source"`
}

// GeotechData merges every geotechnical registry searched around a parcel.
type GeotechData struct {
	SearchRadiusM         float64           `json:"search_radius_m"`
	Boreholes             []Borehole        `json:"boreholes"`
	PenetrationTests      []PenetrationTest `json:"penetration_tests"`
	Reports               []GeotechReport   `json:"reports"`
	InvestigationRequired bool              `json:"investigation_required"`
	Sources               []Source          `json:"sources"`
}

// ServiceConnection describes one network service near a parcel.
type ServiceConnection struct {
	Available  bool     `json:"available"`
	Provider   string   `json:"provider,omitempty"`
	DistanceM  *float64 `json:"distance_m,omitempty"`
	PipeSizeMm *int     `json:"pipe_size_mm,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// InfrastructureData covers three waters and road access.
type InfrastructureData struct {
	WaterSupply *ServiceConnection `json:"water_supply,omitempty"`
	Wastewater  *ServiceConnection `json:"wastewater,omitempty"`
	Stormwater  *ServiceConnection `json:"stormwater,omitempty"`
	RoadAccess  string             `json:"road_access,omitempty"`
	Source      Source             `json:"source"`
}

// ClimateData holds design-relevant climate parameters.
type ClimateData struct {
	WindZone         string   `json:"wind_zone"`
	SnowZone         string   `json:"snow_zone,omitempty"`
	EarthquakeZone   string   `json:"earthquake_zone,omitempty"`
	ExposureZone     string   `json:"exposure_zone,omitempty"`
	AnnualRainfallMm *float64 `json:"annual_rainfall_mm,omitempty"`
	Sources          []Source `json:"sources"`
}

// LandData is the record of title for a parcel.
type LandData struct {
	TitleReference   string   `json:"title_reference"`
	LegalDescription string   `json:"legal_description,omitempty"`
	EstateType       string   `json:"estate_type,omitempty"`
	AreaM2           *float64 `json:"area_m2,omitempty"`
	Owners           []string `json:"owners,omitempty"`
	Encumbrances     []string `json:"encumbrances,omitempty"`
	Source           Source   `json:"source"`
}
