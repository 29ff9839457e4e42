package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/metrics"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

// DefaultProximityRadiusM is how close two sightings must be to count as the same
// parcel.
const DefaultProximityRadiusM = 50.0

// LocationStore persists Locations.
type LocationStore interface {
	GetByID(ctx context.Context, id string) (*models.Location, error)
	FindByTitle(ctx context.Context, titleReference string) ([]models.Location, error)
	FindInBounds(ctx context.Context, box geo.BoundingBox) ([]models.Location, error)
	Insert(ctx context.Context, loc *models.Location) error
	Update(ctx context.Context, loc *models.Location) error
}

// Geocoder turns an address into the best matching address point.
type Geocoder interface {
	Locate(ctx context.Context, address string) (*models.AddressPoint, error)
}

// ReverseGeocoder finds the address point nearest to a coordinate.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*models.AddressPoint, error)
}

// TitleRegistry resolves a title reference.
type TitleRegistry interface {
	LookupTitle(ctx context.Context, titleReference string) (*TitleRecord, error)
}

// NearbyLocation is a FindNearby match with its distance from the search point.
type NearbyLocation struct {
	models.Location
	DistanceM float64 `json:"distance_m"`
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithReverseGeocoder enables administrative enrichment of coordinate entries.
func WithReverseGeocoder(r ReverseGeocoder) ResolverOption {
	return func(res *Resolver) { res.reverse = r }
}

// WithProximityRadius overrides DefaultProximityRadiusM.
func WithProximityRadius(m float64) ResolverOption {
	return func(res *Resolver) {
		if m > 0 {
			res.radiusM = m
		}
	}
}

// WithResolverMetrics records resolutions.
func WithResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(res *Resolver) { res.metrics = m }
}

// WithResolverClock replaces time.Now.
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(res *Resolver) { res.now = now }
}

// WithIDGenerator replaces uuid.NewString for new location ids.
func WithIDGenerator(newID func() string) ResolverOption {
	return func(res *Resolver) { res.newID = newID }
}

// Resolver maps an address, title reference or coordinate to exactly one
// canonical Location, creating it on first sighting.
type Resolver struct {
	store    LocationStore
	geocoder Geocoder
	titles   TitleRegistry
	reverse  ReverseGeocoder
	radiusM  float64
	metrics  *metrics.Metrics
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger

	// mu serializes find-or-create so concurrent callers never duplicate a parcel.
	mu sync.Mutex
}

// NewResolver creates a resolver.
func NewResolver(store LocationStore, geocoder Geocoder, titles TitleRegistry, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:    store,
		geocoder: geocoder,
		titles:   titles,
		radiusM:  DefaultProximityRadiusM,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   log.With().Str("component", "resolver").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetLocation loads a location by id.
func (r *Resolver) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	loc, err := r.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: location %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("service: failed to load location %s: %w", id, err)
	}
	return loc, nil
}

// ResolveByAddress geocodes the address and returns the existing location within
// the proximity radius whose address or title matches, creating one otherwise.
// A location already stored under the point's title is reused wherever it is; if
// it was stored without coordinates it takes the point's position.
func (r *Resolver) ResolveByAddress(ctx context.Context, address string) (*models.Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address cannot be empty", ErrInvalidInput)
	}

	point, err := r.geocoder.Locate(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: geocode %q: %w", address, err)
	}
	if !point.HasCoordinates() {
		return nil, fmt.Errorf("%w: address %q has no position", ErrNotFound, address)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nearby, err := r.findNearby(ctx, point.Latitude, point.Longitude, r.radiusM)
	if err != nil {
		return nil, err
	}
	if match := matchIdentity(nearby, point, address); match != nil {
		r.metrics.IncrementResolution("address", false)
		return r.enrich(ctx, match, point)
	}
	titled, err := r.findByTitle(ctx, point.TitleReference)
	if err != nil {
		return nil, err
	}
	if titled != nil {
		r.metrics.IncrementResolution("address", false)
		if !titled.CoordinatesResolved {
			return r.backfill(ctx, titled, point)
		}
		return r.enrich(ctx, titled, point)
	}

	source := models.SourceAddressSearch
	if point.Accuracy == models.AccuracyRegistry {
		source = models.SourceRegistryLookup
	}
	loc := r.newLocation(point, source, point.Confidence())
	if err := r.insert(ctx, loc); err != nil {
		return nil, err
	}
	r.metrics.IncrementResolution("address", true)
	return loc, nil
}

// ResolveByTitle returns the oldest location carrying the title. On a miss the
// title registry is consulted; a title it knows without a position produces a
// location with unresolved coordinates. Such a location is looked up again on
// every resolution until the registry can place it.
func (r *Resolver) ResolveByTitle(ctx context.Context, titleReference string) (*models.Location, error) {
	titleReference = strings.TrimSpace(titleReference)
	if titleReference == "" {
		return nil, fmt.Errorf("%w: title reference cannot be empty", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.findByTitle(ctx, titleReference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		r.metrics.IncrementResolution("title", false)
		if existing.CoordinatesResolved {
			return existing, nil
		}
		return r.relocate(ctx, existing)
	}

	record, err := r.titles.LookupTitle(ctx, titleReference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service: title lookup %s: %w", titleReference, err)
	}
	point := record.Address
	if point.TitleReference == "" {
		point.TitleReference = titleReference
	}

	if point.HasCoordinates() {
		nearby, err := r.findNearby(ctx, point.Latitude, point.Longitude, r.radiusM)
		if err != nil {
			return nil, err
		}
		if match := matchIdentity(nearby, &point, ""); match != nil {
			r.metrics.IncrementResolution("title", false)
			return r.enrich(ctx, match, &point)
		}
	}

	var loc *models.Location
	if point.HasCoordinates() {
		loc = r.newLocation(&point, models.SourceTitleSearch, point.Confidence())
	} else {
		loc = r.newLocation(&point, models.SourceTitleSearch, models.ConfidenceTitleOnly)
		loc.CoordinatesResolved = false
		if loc.FormattedAddress == "" {
			loc.FormattedAddress = cmp.Or(point.LegalDescription, titleReference)
		}
	}
	if record.Land != nil {
		land := *record.Land
		if land.Source.Name == "" {
			land.Source = record.Source
		}
		if err := loc.SetSection(models.CategoryLand, &land, loc.CreatedAt); err != nil {
			return nil, fmt.Errorf("service: %w", err)
		}
	}
	if err := r.insert(ctx, loc); err != nil {
		return nil, err
	}
	r.metrics.IncrementResolution("title", true)
	return loc, nil
}

// relocate asks the title registry again for the position of a location stored
// without coordinates. The location is returned unchanged if it still has none.
func (r *Resolver) relocate(ctx context.Context, loc *models.Location) (*models.Location, error) {
	record, err := r.titles.LookupTitle(ctx, loc.TitleReference)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn().
				Err(err).
				Str("location_id", loc.ID).
				Str("title_reference", loc.TitleReference).
				Msg("title lookup for unplaced location failed")
		}
		return loc, nil
	}
	if !record.Address.HasCoordinates() {
		return loc, nil
	}
	return r.backfill(ctx, loc, &record.Address)
}

// ResolveByCoordinates returns the nearest location within the proximity radius or
// creates a low-confidence one with a placeholder address.
func (r *Resolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) (*models.Location, error) {
	if !geo.IsValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: %f, %f", ErrInvalidCoordinates, lat, lon)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	nearby, err := r.findNearby(ctx, lat, lon, r.radiusM)
	if err != nil {
		return nil, err
	}
	if len(nearby) > 0 {
		r.metrics.IncrementResolution("coordinates", false)
		loc := nearby[0].Location
		return &loc, nil
	}

	point := &models.AddressPoint{
		FullAddress: fmt.Sprintf("%.6f, %.6f", lat, lon),
		Latitude:    lat,
		Longitude:   lon,
	}
	loc := r.newLocation(point, models.SourceCoordinateEntry, models.ConfidenceCoordinate)
	r.enrichAdministrative(ctx, loc)
	if err := r.insert(ctx, loc); err != nil {
		return nil, err
	}
	r.metrics.IncrementResolution("coordinates", true)
	return loc, nil
}

// FindNearby returns resolved locations within radiusM ordered by ascending
// distance.
func (r *Resolver) FindNearby(ctx context.Context, lat, lon, radiusM float64) ([]NearbyLocation, error) {
	if !geo.IsValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: %f, %f", ErrInvalidCoordinates, lat, lon)
	}
	if radiusM <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrInvalidInput)
	}
	return r.findNearby(ctx, lat, lon, radiusM)
}

// findNearby narrows candidates with the store's bounding-box query and then
// applies the exact haversine check.
func (r *Resolver) findNearby(ctx context.Context, lat, lon, radiusM float64) ([]NearbyLocation, error) {
	candidates, err := r.store.FindInBounds(ctx, geo.NewBoundingBox(lat, lon, radiusM))
	if err != nil {
		return nil, fmt.Errorf("service: failed to search nearby locations: %w", err)
	}

	var out []NearbyLocation
	for _, c := range candidates {
		if !c.CoordinatesResolved {
			continue
		}
		d := geo.DistanceMeters(lat, lon, c.Latitude, c.Longitude)
		if d <= radiusM {
			out = append(out, NearbyLocation{Location: c, DistanceM: d})
		}
	}
	slices.SortStableFunc(out, func(a, b NearbyLocation) int {
		return cmp.Compare(a.DistanceM, b.DistanceM)
	})
	return out, nil
}

// matchIdentity picks the nearest candidate whose address or title equals the
// point's. Identifier equality beats proximity, so a closer candidate with a
// different address is passed over.
func matchIdentity(nearby []NearbyLocation, point *models.AddressPoint, query string) *models.Location {
	keys := []string{models.NormalizeAddress(point.Formatted()), models.NormalizeAddress(point.FullAddress)}
	if query != "" {
		keys = append(keys, models.NormalizeAddress(query))
	}

	for i := range nearby {
		loc := &nearby[i].Location
		if point.TitleReference != "" && loc.TitleReference == point.TitleReference {
			return loc
		}
		if addr := models.NormalizeAddress(loc.FormattedAddress); addr != "" && slices.Contains(keys, addr) {
			return loc
		}
	}
	return nil
}

func (r *Resolver) newLocation(point *models.AddressPoint, source string, confidence int) *models.Location {
	now := r.now().UTC()
	return &models.Location{
		ID:                   r.newID(),
		FormattedAddress:     point.Formatted(),
		TitleReference:       point.TitleReference,
		LegalDescription:     point.LegalDescription,
		Latitude:             point.Latitude,
		Longitude:            point.Longitude,
		CoordinatesResolved:  true,
		Suburb:               point.Suburb,
		City:                 point.City,
		TerritorialAuthority: point.TerritorialAuthority,
		RegionalCouncil:      point.RegionalCouncil,
		Source:               source,
		ConfidenceScore:      confidence,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func (r *Resolver) insert(ctx context.Context, loc *models.Location) error {
	if err := loc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	if err := r.store.Insert(ctx, loc); err != nil {
		return fmt.Errorf("service: failed to create location: %w", err)
	}
	r.logger.Info().
		Str("location_id", loc.ID).
		Str("source", loc.Source).
		Int("confidence", loc.ConfidenceScore).
		Bool("coordinates_resolved", loc.CoordinatesResolved).
		Msg("location created")
	return nil
}

// findByTitle returns the oldest location carrying the title, or nil.
func (r *Resolver) findByTitle(ctx context.Context, titleReference string) (*models.Location, error) {
	if titleReference == "" {
		return nil, nil
	}
	existing, err := r.store.FindByTitle(ctx, titleReference)
	if err != nil {
		return nil, fmt.Errorf("service: failed to search locations by title: %w", err)
	}
	if len(existing) == 0 {
		return nil, nil
	}
	return &existing[0], nil
}

// backfill places a location stored without coordinates at point and takes the
// point's address and confidence.
func (r *Resolver) backfill(ctx context.Context, loc *models.Location, point *models.AddressPoint) (*models.Location, error) {
	loc.Latitude = point.Latitude
	loc.Longitude = point.Longitude
	loc.CoordinatesResolved = true
	if addr := point.Formatted(); addr != "" {
		loc.FormattedAddress = addr
	}
	loc.ConfidenceScore = max(loc.ConfidenceScore, point.Confidence())
	fillIdentity(loc, point)
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}

	loc.UpdatedAt = r.now().UTC()
	if err := r.store.Update(ctx, loc); err != nil {
		return nil, fmt.Errorf("service: failed to place location %s: %w", loc.ID, err)
	}
	r.logger.Info().
		Str("location_id", loc.ID).
		Str("title_reference", loc.TitleReference).
		Msg("location coordinates resolved")
	return loc, nil
}

// enrich back-fills empty identity and administrative fields from point and
// persists the location if anything changed.
func (r *Resolver) enrich(ctx context.Context, loc *models.Location, point *models.AddressPoint) (*models.Location, error) {
	if !fillIdentity(loc, point) {
		return loc, nil
	}

	loc.UpdatedAt = r.now().UTC()
	if err := r.store.Update(ctx, loc); err != nil {
		return nil, fmt.Errorf("service: failed to enrich location %s: %w", loc.ID, err)
	}
	return loc, nil
}

// fillIdentity copies point's identity and administrative fields into the empty
// fields of loc and reports whether any changed.
func fillIdentity(loc *models.Location, point *models.AddressPoint) bool {
	changed := false
	fill := func(dst *string, v string) {
		if *dst == "" && v != "" {
			*dst = v
			changed = true
		}
	}
	fill(&loc.TitleReference, point.TitleReference)
	fill(&loc.LegalDescription, point.LegalDescription)
	fill(&loc.Suburb, point.Suburb)
	fill(&loc.City, point.City)
	fill(&loc.TerritorialAuthority, point.TerritorialAuthority)
	fill(&loc.RegionalCouncil, point.RegionalCouncil)
	return changed
}

// enrichAdministrative copies suburb, city and council names from the nearest
// address point. Failures are logged; the location is usable without them.
func (r *Resolver) enrichAdministrative(ctx context.Context, loc *models.Location) {
	if r.reverse == nil {
		return
	}
	point, err := r.reverse.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn().Err(err).Msg("reverse geocode failed")
		}
		return
	}
	loc.Suburb = point.Suburb
	loc.City = point.City
	loc.TerritorialAuthority = point.TerritorialAuthority
	loc.RegionalCouncil = point.RegionalCouncil
}
