package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/metrics"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
)

// Orchestrator defaults.
const (
	DefaultProviderTimeout = 10 * time.Second
	DefaultMaxConcurrency  = 8
	DefaultGeotechRadiusM  = 500.0
)

// OutcomeStatus says how a refresh handled one category.
type OutcomeStatus string

const (
	OutcomeSkipped    OutcomeStatus = "skipped"
	OutcomeUpdated    OutcomeStatus = "updated"
	OutcomeNoData     OutcomeStatus = "no_data"
	OutcomeFailed     OutcomeStatus = "failed"
	OutcomeNoProvider OutcomeStatus = "no_provider"
)

// CategoryOutcome is the result of refreshing one category.
type CategoryOutcome struct {
	Status        OutcomeStatus          `json:"status"`
	Providers     []string               `json:"providers,omitempty"`
	ErrorCategory provider.ErrorCategory `json:"error_category,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Err           error                  `json:"-"`
}

// RefreshOptions selects what a refresh fetches. An explicit category list is
// always refetched; otherwise only stale categories are.
type RefreshOptions struct {
	Categories []models.Category
	MaxAge     time.Duration
	Now        time.Time
}

// RefreshResult reports every category the refresh considered.
type RefreshResult struct {
	LocationID  string                              `json:"location_id"`
	RefreshedAt time.Time                           `json:"refreshed_at"`
	Outcomes    map[models.Category]CategoryOutcome `json:"outcomes"`
}

// Updated lists the categories written by the refresh in report order.
func (r *RefreshResult) Updated() []models.Category {
	var out []models.Category
	for _, c := range models.AllCategories {
		if o, ok := r.Outcomes[c]; ok && o.Status == OutcomeUpdated {
			out = append(out, c)
		}
	}
	return out
}

// LocationWriter persists a refreshed location.
type LocationWriter interface {
	Update(ctx context.Context, loc *models.Location) error
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithProviderTimeout bounds every provider call. Zero disables the deadline.
func WithProviderTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithMaxConcurrency caps the number of categories fetched at once.
func WithMaxConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrency = n
		}
	}
}

// WithGeotechRadius sets the geotechnical search radius.
func WithGeotechRadius(m float64) OrchestratorOption {
	return func(o *Orchestrator) {
		if m > 0 {
			o.geotechRadiusM = m
		}
	}
}

// WithMaxAge sets the default staleness threshold.
func WithMaxAge(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.maxAge = d }
}

// WithOrchestratorMetrics records provider calls and outcomes.
func WithOrchestratorMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithOrchestratorClock replaces time.Now.
func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator populates and refreshes the cached categories of a Location by
// fanning out to the providers in its registry.
type Orchestrator struct {
	registry       *provider.Registry
	store          LocationWriter
	timeout        time.Duration
	maxConcurrency int
	geotechRadiusM float64
	maxAge         time.Duration
	metrics        *metrics.Metrics
	now            func() time.Time
	logger         zerolog.Logger
}

// NewOrchestrator creates an orchestrator. store may be nil, in which case the
// refreshed location is not persisted.
func NewOrchestrator(registry *provider.Registry, store LocationWriter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry:       registry,
		store:          store,
		timeout:        DefaultProviderTimeout,
		maxConcurrency: DefaultMaxConcurrency,
		geotechRadiusM: DefaultGeotechRadiusM,
		maxAge:         models.DefaultMaxAge,
		now:            time.Now,
		logger:         log.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// categoryFetch is the settled result of one category's lookups. payload is nil
// unless the lookup produced data.
type categoryFetch struct {
	payload    any
	providers  []string
	err        error
	noProvider bool
}

// Refresh fetches the due categories of loc concurrently, waits for every lookup
// to settle and then writes the results into loc. Provider failures are reported
// per category and never returned as an error. Categories settled before ctx is
// cancelled are still written and persisted.
func (o *Orchestrator) Refresh(ctx context.Context, loc *models.Location, opts RefreshOptions) (*RefreshResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = o.now()
	}
	maxAge := cmp.Or(opts.MaxAge, o.maxAge)

	result := &RefreshResult{
		LocationID:  loc.ID,
		RefreshedAt: now,
		Outcomes:    make(map[models.Category]CategoryOutcome),
	}

	categories := opts.Categories
	force := len(categories) > 0
	if !force {
		categories = models.AllCategories
	}

	var due []models.Category
	for _, c := range categories {
		if !force && !loc.IsStale(c, now, maxAge) {
			o.record(result, c, CategoryOutcome{Status: OutcomeSkipped})
			continue
		}
		due = append(due, c)
	}
	if len(due) == 0 {
		return result, nil
	}

	if !loc.CoordinatesResolved {
		for _, c := range due {
			o.record(result, c, CategoryOutcome{
				Status: OutcomeFailed,
				Error:  provider.ErrNoCoordinates.Error(),
				Err:    provider.ErrNoCoordinates,
			})
		}
		return result, nil
	}

	q := provider.Query{
		Lat:            loc.Latitude,
		Lon:            loc.Longitude,
		TitleReference: loc.TitleReference,
		Address:        loc.FormattedAddress,
	}

	// Each task owns one slot; loc is only written after the barrier.
	fetches := make([]categoryFetch, len(due))
	var g errgroup.Group
	g.SetLimit(o.maxConcurrency)
	for i, c := range due {
		g.Go(func() error {
			fetches[i] = o.fetch(ctx, c, q)
			return nil
		})
	}
	_ = g.Wait()

	updated := 0
	for i, c := range due {
		outcome := o.apply(loc, c, fetches[i], now)
		if outcome.Status == OutcomeUpdated {
			updated++
		}
		o.record(result, c, outcome)
	}

	if updated > 0 && o.store != nil {
		loc.UpdatedAt = now
		if err := o.store.Update(context.WithoutCancel(ctx), loc); err != nil {
			return result, fmt.Errorf("service: failed to persist refresh of location %s: %w", loc.ID, err)
		}
	}

	o.logger.Info().
		Str("location_id", loc.ID).
		Int("due", len(due)).
		Int("updated", updated).
		Msg("refresh settled")

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("service: refresh of location %s interrupted: %w", loc.ID, err)
	}
	return result, nil
}

func (o *Orchestrator) record(result *RefreshResult, c models.Category, outcome CategoryOutcome) {
	result.Outcomes[c] = outcome
	o.metrics.IncrementRefreshOutcome(string(c), string(outcome.Status))
}

// apply writes a settled fetch into loc.
func (o *Orchestrator) apply(loc *models.Location, c models.Category, f categoryFetch, now time.Time) CategoryOutcome {
	outcome := CategoryOutcome{Providers: f.providers}
	switch {
	case f.noProvider:
		outcome.Status = OutcomeNoProvider
	case f.err != nil:
		outcome.Status = OutcomeFailed
		outcome.ErrorCategory = provider.Categorize(f.err)
		outcome.Error = f.err.Error()
		outcome.Err = f.err
	case f.payload == nil:
		outcome.Status = OutcomeNoData
	default:
		if err := loc.SetSection(c, f.payload, now); err != nil {
			outcome.Status = OutcomeFailed
			outcome.ErrorCategory = provider.ErrorInternal
			outcome.Error = err.Error()
			outcome.Err = err
			return outcome
		}
		outcome.Status = OutcomeUpdated
	}
	return outcome
}

func (o *Orchestrator) fetch(ctx context.Context, c models.Category, q provider.Query) categoryFetch {
	switch c {
	case models.CategoryZoning:
		return fetchFirst(ctx, o, c, q, provider.ZoningLookup.LookupZoning,
			func(d *models.ZoningData, s models.Source) { d.Source = s })
	case models.CategoryHazard:
		return o.fetchHazards(ctx, q)
	case models.CategoryGeotech:
		return o.fetchGeotech(ctx, q)
	case models.CategoryInfrastructure:
		return fetchFirst(ctx, o, c, q, provider.InfrastructureLookup.LookupInfrastructure,
			func(d *models.InfrastructureData, s models.Source) { d.Source = s })
	case models.CategoryClimate:
		return o.fetchClimate(ctx, q)
	case models.CategoryLand:
		return fetchFirst(ctx, o, c, q, provider.TitleLookup.LookupTitle,
			func(d *models.LandData, s models.Source) { d.Source = s })
	}
	return categoryFetch{err: fmt.Errorf("service: unknown category %q", c)}
}

// fetchFirst queries the first registered provider of capability P covering the
// query point.
func fetchFirst[P provider.Provider, T any](
	ctx context.Context,
	o *Orchestrator,
	c models.Category,
	q provider.Query,
	lookup func(P, context.Context, provider.Query) (*T, models.Source, error),
	setSource func(*T, models.Source),
) categoryFetch {
	p, ok := provider.FirstMatch[P](o.registry, q.Lat, q.Lon)
	if !ok {
		return categoryFetch{noProvider: true}
	}

	data, src, err := lookupOne(ctx, o, p, c, q, func(ctx context.Context, q provider.Query) (*T, models.Source, error) {
		return lookup(p, ctx, q)
	})
	f := categoryFetch{providers: []string{p.Name()}, err: err}
	if data != nil {
		setSource(data, o.stampSource(src, p.Name()))
		f.payload = data
	}
	return f
}

// fetchHazards runs the regional hazard lookup and, only once it has returned
// data, enriches it with the seismic specialist. A seismic failure keeps the
// base hazard data.
func (o *Orchestrator) fetchHazards(ctx context.Context, q provider.Query) categoryFetch {
	f := fetchFirst(ctx, o, models.CategoryHazard, q, provider.HazardLookup.LookupHazards,
		func(d *models.HazardData, s models.Source) { d.Source = s })
	hazards, ok := f.payload.(*models.HazardData)
	if !ok {
		return f
	}

	sp, found := provider.FirstMatch[provider.SeismicLookup](o.registry, q.Lat, q.Lon)
	if !found {
		return f
	}
	f.providers = append(f.providers, sp.Name())
	seismic, src, err := lookupOne(ctx, o, sp, models.CategoryHazard, q, sp.LookupSeismic)
	if err == nil && seismic != nil {
		seismic.Source = o.stampSource(src, sp.Name())
		hazards.Seismic = seismic
	}
	return f
}

// geotechPart is the result of one geotechnical sub-lookup.
type geotechPart struct {
	name      string
	boreholes []models.Borehole
	tests     []models.PenetrationTest
	reports   []models.GeotechReport
	src       models.Source
	err       error
}

// fetchGeotech queries every borehole, penetration test and report provider
// covering the point within the geotechnical radius and merges the answers.
func (o *Orchestrator) fetchGeotech(ctx context.Context, q provider.Query) categoryFetch {
	q.RadiusM = o.geotechRadiusM
	bores := provider.AllMatches[provider.BoreholeLookup](o.registry, q.Lat, q.Lon)
	cpts := provider.AllMatches[provider.PenetrationTestLookup](o.registry, q.Lat, q.Lon)
	reports := provider.AllMatches[provider.GeotechReportLookup](o.registry, q.Lat, q.Lon)

	parts := make([]geotechPart, 0, len(bores)+len(cpts)+len(reports))
	for _, p := range bores {
		parts = append(parts, geotechPart{name: p.Name()})
	}
	for _, p := range cpts {
		parts = append(parts, geotechPart{name: p.Name()})
	}
	for _, p := range reports {
		parts = append(parts, geotechPart{name: p.Name()})
	}
	if len(parts) == 0 {
		return categoryFetch{noProvider: true}
	}

	var g errgroup.Group
	i := 0
	for _, p := range bores {
		part := &parts[i]
		i++
		g.Go(func() error {
			part.boreholes, part.src, part.err = lookupMany(ctx, o, p, models.CategoryGeotech, q, p.LookupBoreholes)
			return nil
		})
	}
	for _, p := range cpts {
		part := &parts[i]
		i++
		g.Go(func() error {
			part.tests, part.src, part.err = lookupMany(ctx, o, p, models.CategoryGeotech, q, p.LookupPenetrationTests)
			return nil
		})
	}
	for _, p := range reports {
		part := &parts[i]
		i++
		g.Go(func() error {
			part.reports, part.src, part.err = lookupMany(ctx, o, p, models.CategoryGeotech, q, p.LookupGeotechReports)
			return nil
		})
	}
	_ = g.Wait()

	data := &models.GeotechData{
		SearchRadiusM:    q.RadiusM,
		Boreholes:        []models.Borehole{},
		PenetrationTests: []models.PenetrationTest{},
		Reports:          []models.GeotechReport{},
		Sources:          []models.Source{},
	}
	f := categoryFetch{}
	var errs []error
	for _, part := range parts {
		if !slices.Contains(f.providers, part.name) {
			f.providers = append(f.providers, part.name)
		}
		if part.err != nil {
			errs = append(errs, part.err)
			continue
		}
		data.Sources = append(data.Sources, o.stampSource(part.src, part.name))
		for _, b := range part.boreholes {
			b.Source = cmp.Or(b.Source, part.name)
			data.Boreholes = append(data.Boreholes, b)
		}
		for _, t := range part.tests {
			t.Source = cmp.Or(t.Source, part.name)
			data.PenetrationTests = append(data.PenetrationTests, t)
		}
		for _, r := range part.reports {
			r.Source = cmp.Or(r.Source, part.name)
			data.Reports = append(data.Reports, r)
		}
	}
	if len(errs) == len(parts) {
		f.err = errors.Join(errs...)
		return f
	}

	slices.SortStableFunc(data.Boreholes, func(a, b models.Borehole) int { return cmp.Compare(a.DistanceM, b.DistanceM) })
	slices.SortStableFunc(data.PenetrationTests, func(a, b models.PenetrationTest) int { return cmp.Compare(a.DistanceM, b.DistanceM) })
	slices.SortStableFunc(data.Reports, func(a, b models.GeotechReport) int { return cmp.Compare(a.DistanceM, b.DistanceM) })
	data.InvestigationRequired = len(data.Boreholes) == 0
	f.payload = data
	return f
}

// fetchClimate queries every climate provider covering the point and merges the
// answers field by field in registration order.
func (o *Orchestrator) fetchClimate(ctx context.Context, q provider.Query) categoryFetch {
	providers := provider.AllMatches[provider.ClimateLookup](o.registry, q.Lat, q.Lon)
	if len(providers) == 0 {
		return categoryFetch{noProvider: true}
	}

	type answer struct {
		data *models.ClimateData
		src  models.Source
		err  error
	}
	answers := make([]answer, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			a := &answers[i]
			a.data, a.src, a.err = lookupOne(ctx, o, p, models.CategoryClimate, q, p.LookupClimate)
			return nil
		})
	}
	_ = g.Wait()

	merged := &models.ClimateData{}
	f := categoryFetch{}
	var errs []error
	for i, a := range answers {
		f.providers = append(f.providers, providers[i].Name())
		if a.err != nil {
			errs = append(errs, a.err)
			continue
		}
		if a.data == nil {
			continue
		}
		mergeClimate(merged, a.data)
		merged.Sources = append(merged.Sources, o.stampSource(a.src, providers[i].Name()))
	}
	switch {
	case len(merged.Sources) > 0:
		f.payload = merged
	case len(errs) > 0:
		f.err = errors.Join(errs...)
	}
	return f
}

func mergeClimate(dst, src *models.ClimateData) {
	dst.WindZone = cmp.Or(dst.WindZone, src.WindZone)
	dst.SnowZone = cmp.Or(dst.SnowZone, src.SnowZone)
	dst.EarthquakeZone = cmp.Or(dst.EarthquakeZone, src.EarthquakeZone)
	dst.ExposureZone = cmp.Or(dst.ExposureZone, src.ExposureZone)
	if dst.AnnualRainfallMm == nil {
		dst.AnnualRainfallMm = src.AnnualRainfallMm
	}
}

// stampSource fills the provider name and retrieval time when the provider left
// them empty.
func (o *Orchestrator) stampSource(src models.Source, name string) models.Source {
	src.Name = cmp.Or(src.Name, name)
	if src.RetrievedAt.IsZero() {
		src.RetrievedAt = o.now()
	}
	return src
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout > 0 {
		return context.WithTimeout(ctx, o.timeout)
	}
	return context.WithCancel(ctx)
}

// lookupOne runs a single-payload lookup under the per-call deadline.
func lookupOne[T any](
	ctx context.Context,
	o *Orchestrator,
	p provider.Provider,
	c models.Category,
	q provider.Query,
	fn func(context.Context, provider.Query) (*T, models.Source, error),
) (*T, models.Source, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	data, src, err := callProvider(p.Name(), func() (*T, models.Source, error) { return fn(ctx, q) })
	o.observe(p, c, time.Since(start), err, data == nil)
	if err != nil {
		return nil, src, err
	}
	return data, src, nil
}

// lookupMany runs a list lookup under the per-call deadline.
func lookupMany[T any](
	ctx context.Context,
	o *Orchestrator,
	p provider.Provider,
	c models.Category,
	q provider.Query,
	fn func(context.Context, provider.Query) ([]T, models.Source, error),
) ([]T, models.Source, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()

	start := time.Now()
	data, src, err := callProvider(p.Name(), func() ([]T, models.Source, error) { return fn(ctx, q) })
	o.observe(p, c, time.Since(start), err, len(data) == 0)
	if err != nil {
		return nil, src, err
	}
	return data, src, nil
}

// callProvider runs one provider call. A panic in the provider is returned as an
// internal provider error instead of unwinding the caller's goroutine.
func callProvider[R any](name string, fn func() (R, models.Source, error)) (data R, src models.Source, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			data, src = zero, models.Source{}
			err = provider.NewProviderError(provider.ErrorInternal, name, fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return fn()
}

func (o *Orchestrator) observe(p provider.Provider, c models.Category, d time.Duration, err error, empty bool) {
	result := "ok"
	switch {
	case err != nil:
		result = string(provider.Categorize(err))
	case empty:
		result = "no_data"
	}
	o.metrics.ObserveProviderCall(p.Name(), string(c), result, d)

	if err != nil {
		o.logger.Warn().
			Err(err).
			Str("provider", p.Name()).
			Str("category", string(c)).
			Str("error_category", result).
			Dur("duration", d).
			Msg("provider lookup failed")
	}
}
