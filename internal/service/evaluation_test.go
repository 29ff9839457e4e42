package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/provider/providertest"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

type evaluationFixture struct {
	resolverFixture
	jobs    *repository.InMemoryJobStore
	service *EvaluationService
}

func newEvaluationFixture(t *testing.T, providers ...provider.Provider) evaluationFixture {
	t.Helper()
	f := newResolverFixture(t, providers...)
	orchestrator := NewOrchestrator(mustRegistry(t, providers...), f.store, WithOrchestratorClock(fixedTime))
	jobs := repository.NewInMemoryJobStore()

	ids := 0
	service := NewEvaluationService(f.resolver, orchestrator, jobs,
		WithEvaluationClock(fixedTime),
		WithJobIDGenerator(func() string {
			ids++
			return fmt.Sprintf("job-%d", ids)
		}),
	)
	return evaluationFixture{resolverFixture: f, jobs: jobs, service: service}
}

func TestEvaluationService_Scenario(t *testing.T) {
	var radius atomic.Value
	f := newEvaluationFixture(t,
		zoningReturning("CCZ"),
		providertest.NewHazard("regional-hazards", anywhere, func(context.Context, provider.Query) (*models.HazardData, error) {
			return &models.HazardData{LiquefactionCategory: "TC2"}, nil
		}),
		providertest.NewBoreholes("nzgd", anywhere, func(_ context.Context, q provider.Query) ([]models.Borehole, error) {
			radius.Store(q.RadiusM)
			return []models.Borehole{}, nil
		}),
	)
	ctx := context.Background()
	lat, lon := -43.5320, 172.6362

	created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{Latitude: &lat, Longitude: &lon, Requester: "surveyor"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, created.Job.Status)
	assert.Equal(t, models.PurposeFeasibility, created.Job.Purpose)
	assert.Zero(t, created.Job.CompletenessPct)

	run, err := f.service.RunEvaluation(ctx, created.Job.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, 500.0, radius.Load())
	require.NotNil(t, run.Location.Geotech)
	assert.True(t, run.Location.Geotech.InvestigationRequired)
	assert.Equal(t, "CCZ", run.Location.Zoning.ZoneCode)
	assert.Equal(t, "TC2", run.Location.Hazards.LiquefactionCategory)

	job := run.Job
	assert.Equal(t, models.SectionComplete, job.Sections[models.CategoryZoning].Status)
	assert.Equal(t, models.SectionPartial, job.Sections[models.CategoryGeotech].Status)
	assert.NotEqual(t, models.SectionComplete, job.Sections[models.CategoryGeotech].Status)
	assert.Equal(t, models.StatusInProgress, job.Status)
	assert.False(t, job.HasCriticalGap())
	assert.InDelta(t, 16.67, job.CompletenessPct, 0.01)

	stored, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
	assert.Len(t, stored.Gaps, len(job.Gaps))
}

func completeProviders(hazardUp *atomic.Bool) []provider.Provider {
	return []provider.Provider{
		zoningReturning("CCZ"),
		providertest.NewHazard("regional-hazards", anywhere, func(context.Context, provider.Query) (*models.HazardData, error) {
			if !hazardUp.Load() {
				return nil, provider.NewProviderError(provider.ErrorUnavailable, "regional-hazards", "503", nil)
			}
			return &models.HazardData{FloodZone: "none", LiquefactionCategory: "TC2"}, nil
		}),
		providertest.NewBoreholes("nzgd", anywhere, func(context.Context, provider.Query) ([]models.Borehole, error) {
			return []models.Borehole{{ID: "BH-1", DistanceM: 40}}, nil
		}),
		providertest.NewInfrastructure("three-waters", anywhere, func(context.Context, provider.Query) (*models.InfrastructureData, error) {
			return &models.InfrastructureData{WaterSupply: &models.ServiceConnection{Available: true}}, nil
		}),
		providertest.NewClimate("niwa", anywhere, func(context.Context, provider.Query) (*models.ClimateData, error) {
			return &models.ClimateData{WindZone: "Medium"}, nil
		}),
		providertest.NewTitle("linz", anywhere, func(_ context.Context, q provider.Query) (*models.LandData, error) {
			return &models.LandData{TitleReference: "CB1A/100"}, nil
		}),
	}
}

func TestEvaluationService_RequiresManualDataThenRecovers(t *testing.T) {
	var hazardUp atomic.Bool
	f := newEvaluationFixture(t, completeProviders(&hazardUp)...)
	ctx := context.Background()

	created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{
		Address:   "100 Cathedral Square",
		Requester: "buyer",
		Purpose:   string(models.PurposePurchase),
	})
	require.NoError(t, err)

	run, err := f.service.RunEvaluation(ctx, created.Job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequiresManualData, run.Job.Status)
	gap := findGap(run.Job.Gaps, "hazards")
	require.NotNil(t, gap)
	assert.Equal(t, models.SeverityCritical, gap.Severity)

	hazardUp.Store(true)
	run, err = f.service.RunEvaluation(ctx, created.Job.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSkipped, run.Refresh.Outcomes[models.CategoryZoning].Status, "fresh categories are not refetched")
	assert.Equal(t, OutcomeUpdated, run.Refresh.Outcomes[models.CategoryHazard].Status)
	assert.Equal(t, models.StatusComplete, run.Job.Status)
	assert.InDelta(t, 100, run.Job.CompletenessPct, 0.001)
	require.NotNil(t, run.Job.CompletedAt)
	assert.Equal(t, testNow, *run.Job.CompletedAt)

	_, err = f.service.RunEvaluation(ctx, created.Job.ID, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestEvaluationService_DegradedLocation(t *testing.T) {
	titles := providertest.NewTitle("linz", provider.Region{}, func(_ context.Context, q provider.Query) (*models.LandData, error) {
		return &models.LandData{TitleReference: q.TitleReference, LegalDescription: "Lot 9 DP 9999"}, nil
	})
	f := newEvaluationFixture(t, titles)
	ctx := context.Background()

	created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{TitleReference: "CB9Z/9", Requester: "lawyer"})
	require.NoError(t, err)
	assert.False(t, created.Location.CoordinatesResolved)
	assert.True(t, created.Job.HasCriticalGap())

	run, err := f.service.RunEvaluation(ctx, created.Job.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequiresManualData, run.Job.Status)
	assert.Equal(t, coordinatesGap, run.Job.Gaps[0])
	assert.Equal(t, models.SectionComplete, run.Job.Sections[models.CategoryLand].Status)
}

func TestEvaluationService_DegradedLocationRecoversOncePlaced(t *testing.T) {
	// Setup
	var hazardUp atomic.Bool
	hazardUp.Store(true)
	providers := completeProviders(&hazardUp)
	providers[len(providers)-1] = titleOnlyProvider()
	f := newEvaluationFixture(t, providers...)
	ctx := context.Background()

	created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{TitleReference: "CB9Z/9", Requester: "lawyer"})
	require.NoError(t, err)
	run, err := f.service.RunEvaluation(ctx, created.Job.ID, nil)
	require.NoError(t, err)
	require.Equal(t, models.StatusRequiresManualData, run.Job.Status)

	f.index.Load([]models.AddressPoint{worcesterBoulevard})
	placed, err := f.resolver.ResolveByAddress(ctx, "9 Worcester Boulevard")
	require.NoError(t, err)
	require.Equal(t, created.Location.ID, placed.ID)

	// Execute
	run, err = f.service.RunEvaluation(ctx, created.Job.ID, nil)

	// Assert
	require.NoError(t, err)
	assert.True(t, run.Location.CoordinatesResolved)
	assert.NotContains(t, run.Job.Gaps, coordinatesGap)
	assert.Equal(t, OutcomeUpdated, run.Refresh.Outcomes[models.CategoryZoning].Status)
	assert.Equal(t, models.StatusComplete, run.Job.Status)
	assert.InDelta(t, 100, run.Job.CompletenessPct, 0.001)
	assert.Equal(t, 1, f.count(t))
}

func TestEvaluationService_SharedLocation(t *testing.T) {
	var hazardUp atomic.Bool
	hazardUp.Store(true)
	f := newEvaluationFixture(t, completeProviders(&hazardUp)...)
	ctx := context.Background()

	a, err := f.service.CreateEvaluation(ctx, EvaluationRequest{Address: "100 Cathedral Square", Requester: "a"})
	require.NoError(t, err)
	b, err := f.service.CreateEvaluation(ctx, EvaluationRequest{TitleReference: "CB1A/100", Requester: "b", Customer: "acme"})
	require.NoError(t, err)
	assert.Equal(t, a.Location.ID, b.Location.ID)

	_, err = f.service.RunEvaluation(ctx, a.Job.ID, nil)
	require.NoError(t, err)

	jobs, err := f.service.ListEvaluations(ctx, a.Location.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.StatusComplete, jobs[0].Status)
	assert.Equal(t, models.StatusCreated, jobs[1].Status)

	report, err := f.service.Completeness(ctx, a.Location.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, report.CompleteCount)
}

func TestEvaluationService_ExternalTransitions(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()
	created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{Address: "100 Cathedral Square", Requester: "a"})
	require.NoError(t, err)
	id := created.Job.ID

	_, err = f.service.ResumeEvaluation(ctx, id)
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "only held jobs resume")

	job, err := f.service.HoldEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnHold, job.Status)

	_, err = f.service.RunEvaluation(ctx, id, nil)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	job, err = f.service.ResumeEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, job.Status)

	job, err = f.service.CancelEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, job.Status)
	require.NotNil(t, job.CompletedAt)

	_, err = f.service.HoldEvaluation(ctx, id)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	got, err := f.service.GetEvaluation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Job.Status)
	assert.Equal(t, created.Location.ID, got.Location.ID)
}

func TestEvaluationService_StatusChangeDuringRun(t *testing.T) {
	tests := []struct {
		name   string
		change func(*EvaluationService, context.Context, string) (*models.EvaluationJob, error)
		want   models.Status
	}{
		{name: "cancel", change: (*EvaluationService).CancelEvaluation, want: models.StatusCancelled},
		{name: "hold", change: (*EvaluationService).HoldEvaluation, want: models.StatusOnHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			started := make(chan struct{})
			release := make(chan struct{})
			zoning := providertest.NewZoning("district-plan", anywhere, func(context.Context, provider.Query) (*models.ZoningData, error) {
				close(started)
				<-release
				return &models.ZoningData{ZoneCode: "CCZ"}, nil
			})
			f := newEvaluationFixture(t, zoning)
			ctx := context.Background()
			created, err := f.service.CreateEvaluation(ctx, EvaluationRequest{Address: "100 Cathedral Square", Requester: "a"})
			require.NoError(t, err)

			type runResult struct {
				run *Evaluation
				err error
			}
			done := make(chan runResult, 1)
			go func() {
				run, err := f.service.RunEvaluation(ctx, created.Job.ID, nil)
				done <- runResult{run: run, err: err}
			}()
			<-started

			// Execute
			changed, changeErr := tt.change(f.service, ctx, created.Job.ID)
			close(release)
			res := <-done

			// Assert
			require.NoError(t, changeErr)
			assert.Equal(t, tt.want, changed.Status)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want, res.run.Job.Status)

			stored, err := f.jobs.GetByID(ctx, created.Job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
			assert.Equal(t, "CCZ", res.run.Location.Zoning.ZoneCode)
		})
	}
}

func TestEvaluationService_CreateValidation(t *testing.T) {
	lat := -43.5320
	tests := []struct {
		name        string
		req         EvaluationRequest
		expectError error
	}{
		{name: "no identifier", req: EvaluationRequest{Requester: "a"}, expectError: ErrInvalidInput},
		{name: "latitude without longitude", req: EvaluationRequest{Latitude: &lat, Requester: "a"}, expectError: ErrInvalidInput},
		{name: "unknown purpose", req: EvaluationRequest{Address: "100 Cathedral Square", Requester: "a", Purpose: "demolition"}, expectError: ErrInvalidInput},
		{name: "missing requester", req: EvaluationRequest{Address: "100 Cathedral Square"}, expectError: ErrInvalidInput},
		{name: "unknown address", req: EvaluationRequest{Address: "1 Nowhere Road", Requester: "a"}, expectError: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEvaluationFixture(t)

			_, err := f.service.CreateEvaluation(context.Background(), tt.req)

			assert.ErrorIs(t, err, tt.expectError)
		})
	}
}

func TestEvaluationService_NotFound(t *testing.T) {
	f := newEvaluationFixture(t)
	ctx := context.Background()

	_, err := f.service.GetEvaluation(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.service.RunEvaluation(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = f.service.RefreshLocation(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, loc *models.Location, opts RefreshOptions) (*RefreshResult, error) {
	args := m.Called(ctx, loc, opts)
	return args.Get(0).(*RefreshResult), args.Error(1)
}

func TestEvaluationService_RefreshError(t *testing.T) {
	f := newResolverFixture(t)
	jobs := repository.NewInMemoryJobStore()
	refresher := new(MockRefresher)
	service := NewEvaluationService(f.resolver, refresher, jobs, WithEvaluationClock(fixedTime))
	ctx := context.Background()

	created, err := service.CreateEvaluation(ctx, EvaluationRequest{Address: "100 Cathedral Square", Requester: "a"})
	require.NoError(t, err)

	t.Run("hard failure leaves the job in progress", func(t *testing.T) {
		refresher.On("Refresh", mock.Anything, mock.Anything, RefreshOptions{Categories: []models.Category{models.CategoryZoning}}).
			Return((*RefreshResult)(nil), assert.AnError).Once()

		_, err := service.RunEvaluation(ctx, created.Job.ID, []models.Category{models.CategoryZoning})

		assert.ErrorIs(t, err, assert.AnError)
		job, err := jobs.GetByID(ctx, created.Job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProgress, job.Status)
	})

	t.Run("cancelled refresh keeps settled outcomes", func(t *testing.T) {
		partial := &RefreshResult{LocationID: created.Location.ID, Outcomes: map[models.Category]CategoryOutcome{
			models.CategoryZoning: {Status: OutcomeUpdated},
		}}
		refresher.On("Refresh", mock.Anything, mock.Anything, RefreshOptions{}).
			Return(partial, context.Canceled).Once()

		run, err := service.RunEvaluation(ctx, created.Job.ID, nil)

		assert.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, run)
		assert.Equal(t, models.StatusInProgress, run.Job.Status)
		assert.NotEmpty(t, run.Job.Gaps)
	})

	refresher.AssertExpectations(t)
}
