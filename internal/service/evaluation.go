package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/metrics"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

// LocationResolver finds or creates canonical locations.
type LocationResolver interface {
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	ResolveByAddress(ctx context.Context, address string) (*models.Location, error)
	ResolveByTitle(ctx context.Context, titleReference string) (*models.Location, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (*models.Location, error)
}

// Refresher populates the cached sections of a location.
type Refresher interface {
	Refresh(ctx context.Context, loc *models.Location, opts RefreshOptions) (*RefreshResult, error)
}

// JobStore persists evaluation jobs.
type JobStore interface {
	GetByID(ctx context.Context, id string) (*models.EvaluationJob, error)
	ListByLocation(ctx context.Context, locationID string) ([]models.EvaluationJob, error)
	Insert(ctx context.Context, job *models.EvaluationJob) error
	Update(ctx context.Context, job *models.EvaluationJob) error
}

// EvaluationRequest identifies the parcel to evaluate. The address wins over the
// title reference, which wins over coordinates.
type EvaluationRequest struct {
	Address        string   `json:"address"`
	TitleReference string   `json:"title_reference"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
	Requester      string   `json:"requester"`
	Customer       string   `json:"customer"`
	Purpose        string   `json:"purpose"`
}

// Evaluation is a job together with the shared location it reads.
type Evaluation struct {
	Job      *models.EvaluationJob `json:"job"`
	Location *models.Location      `json:"location"`
	Refresh  *RefreshResult        `json:"refresh,omitempty"`
}

// EvaluationOption configures an EvaluationService.
type EvaluationOption func(*EvaluationService)

// WithEvaluationMetrics records job status changes.
func WithEvaluationMetrics(m *metrics.Metrics) EvaluationOption {
	return func(s *EvaluationService) { s.metrics = m }
}

// WithEvaluationClock replaces time.Now.
func WithEvaluationClock(now func() time.Time) EvaluationOption {
	return func(s *EvaluationService) { s.now = now }
}

// WithJobIDGenerator replaces uuid.NewString for job ids.
func WithJobIDGenerator(newID func() string) EvaluationOption {
	return func(s *EvaluationService) { s.newID = newID }
}

// EvaluationService drives evaluation jobs through resolution, refresh and
// completeness scoring.
type EvaluationService struct {
	resolver  LocationResolver
	refresher Refresher
	jobs      JobStore
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
	logger    zerolog.Logger
	locks     keyedMutex
	jobLocks  keyedMutex
}

// NewEvaluationService creates an evaluation service.
func NewEvaluationService(resolver LocationResolver, refresher Refresher, jobs JobStore, opts ...EvaluationOption) *EvaluationService {
	s := &EvaluationService{
		resolver:  resolver,
		refresher: refresher,
		jobs:      jobs,
		now:       time.Now,
		newID:     uuid.NewString,
		logger:    log.With().Str("component", "evaluation").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvaluation resolves the requested parcel and opens a job against it.
// Nothing is fetched until the job is run.
func (s *EvaluationService) CreateEvaluation(ctx context.Context, req EvaluationRequest) (*Evaluation, error) {
	purpose, err := models.ParsePurpose(req.Purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(req.Requester) == "" {
		return nil, fmt.Errorf("%w: requester cannot be empty", ErrInvalidInput)
	}

	loc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := AssessCompleteness(loc)
	job := &models.EvaluationJob{
		ID:              s.newID(),
		LocationID:      loc.ID,
		Requester:       req.Requester,
		Customer:        req.Customer,
		Purpose:         purpose,
		Status:          models.StatusCreated,
		Sections:        report.Sections,
		CompletenessPct: report.Percentage,
		Gaps:            []models.DataGap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !loc.CoordinatesResolved {
		job.Gaps = append(job.Gaps, coordinatesGap)
	}

	if err := s.jobs.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("service: failed to create evaluation: %w", err)
	}
	s.metrics.IncrementEvaluationStatus(string(job.Status), string(job.Purpose))

	s.logger.Info().
		Str("job_id", job.ID).
		Str("location_id", loc.ID).
		Str("purpose", string(purpose)).
		Msg("evaluation created")
	return &Evaluation{Job: job, Location: loc}, nil
}

func (s *EvaluationService) resolve(ctx context.Context, req EvaluationRequest) (*models.Location, error) {
	switch {
	case strings.TrimSpace(req.Address) != "":
		return s.resolver.ResolveByAddress(ctx, req.Address)
	case strings.TrimSpace(req.TitleReference) != "":
		return s.resolver.ResolveByTitle(ctx, req.TitleReference)
	case req.Latitude != nil && req.Longitude != nil:
		return s.resolver.ResolveByCoordinates(ctx, *req.Latitude, *req.Longitude)
	}
	return nil, fmt.Errorf("%w: an address, title reference or coordinates are required", ErrInvalidInput)
}

// RunEvaluation refreshes the job's location and rescores the job. An empty
// category list refreshes only stale categories. Provider failures become gaps;
// an error is returned only when the job or location cannot be loaded or saved,
// or when ctx is cancelled. In the last case settled categories are kept and the
// job stays in progress. A job cancelled or held while its refresh runs keeps
// that status.
func (s *EvaluationService) RunEvaluation(ctx context.Context, jobID string, categories []models.Category) (*Evaluation, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(job.LocationID)
	defer unlock()

	loc, err := s.resolver.GetLocation(ctx, job.LocationID)
	if err != nil {
		return nil, err
	}

	if err := s.startRun(ctx, jobID); err != nil {
		return nil, err
	}

	result, refreshErr := s.refresher.Refresh(ctx, loc, RefreshOptions{Categories: categories})
	if refreshErr != nil && result == nil {
		return nil, refreshErr
	}

	job, err = s.finishRun(ctx, jobID, loc, result, refreshErr == nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("job_id", job.ID).
		Str("location_id", loc.ID).
		Str("status", string(job.Status)).
		Float64("completeness_pct", job.CompletenessPct).
		Int("gaps", len(job.Gaps)).
		Msg("evaluation run")

	evaluation := &Evaluation{Job: job, Location: loc, Refresh: result}
	if refreshErr != nil {
		return evaluation, refreshErr
	}
	return evaluation, nil
}

// startRun moves a runnable job to in progress.
func (s *EvaluationService) startRun(ctx context.Context, jobID string) error {
	unlock := s.jobLocks.lock(jobID)
	defer unlock()

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() || job.Status == models.StatusOnHold {
		return fmt.Errorf("%w: job %s is %s", models.ErrInvalidTransition, job.ID, job.Status)
	}
	return s.transition(ctx, job, models.StatusInProgress)
}

// finishRun rescores the job as it is stored now. A terminal job is returned
// unchanged; a held job is rescored but stays on hold.
func (s *EvaluationService) finishRun(ctx context.Context, jobID string, loc *models.Location, result *RefreshResult, settle bool) (*models.EvaluationJob, error) {
	ctx = context.WithoutCancel(ctx)
	unlock := s.jobLocks.lock(jobID)
	defer unlock()

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		s.logger.Info().
			Str("job_id", job.ID).
			Str("status", string(job.Status)).
			Msg("evaluation settled while refreshing; result discarded")
		return job, nil
	}

	report := AssessCompleteness(loc)
	job.Sections = report.Sections
	job.CompletenessPct = report.Percentage
	job.Gaps = BuildGaps(loc, report, job.Purpose, result.Outcomes)

	if settle {
		next := DeriveStatus(job.Status, report, job.Gaps)
		if err := job.TransitionTo(next, s.now()); err != nil {
			return nil, err
		}
	}
	job.UpdatedAt = s.now()

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("service: failed to save evaluation %s: %w", job.ID, err)
	}
	s.metrics.IncrementEvaluationStatus(string(job.Status), string(job.Purpose))
	return job, nil
}

// RefreshLocation refreshes a location outside any job.
func (s *EvaluationService) RefreshLocation(ctx context.Context, locationID string, categories []models.Category) (*models.Location, *RefreshResult, error) {
	unlock := s.locks.lock(locationID)
	defer unlock()

	loc, err := s.resolver.GetLocation(ctx, locationID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.refresher.Refresh(ctx, loc, RefreshOptions{Categories: categories})
	return loc, result, err
}

// Completeness scores a location as it is currently cached.
func (s *EvaluationService) Completeness(ctx context.Context, locationID string) (*models.CompletenessReport, error) {
	loc, err := s.resolver.GetLocation(ctx, locationID)
	if err != nil {
		return nil, err
	}
	report := AssessCompleteness(loc)
	return &report, nil
}

// GetEvaluation loads a job and its location.
func (s *EvaluationService) GetEvaluation(ctx context.Context, jobID string) (*Evaluation, error) {
	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	loc, err := s.resolver.GetLocation(ctx, job.LocationID)
	if err != nil {
		return nil, err
	}
	return &Evaluation{Job: job, Location: loc}, nil
}

// ListEvaluations returns every job opened against a location.
func (s *EvaluationService) ListEvaluations(ctx context.Context, locationID string) ([]models.EvaluationJob, error) {
	jobs, err := s.jobs.ListByLocation(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list evaluations for %s: %w", locationID, err)
	}
	return jobs, nil
}

// HoldEvaluation pauses a job.
func (s *EvaluationService) HoldEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error) {
	return s.changeStatus(ctx, jobID, models.StatusOnHold)
}

// ResumeEvaluation returns a held job to in progress.
func (s *EvaluationService) ResumeEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error) {
	unlock := s.jobLocks.lock(jobID)
	defer unlock()

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.StatusOnHold {
		return nil, fmt.Errorf("%w: job %s is %s, not on hold", models.ErrInvalidTransition, job.ID, job.Status)
	}
	if err := s.transition(ctx, job, models.StatusInProgress); err != nil {
		return nil, err
	}
	return job, nil
}

// CancelEvaluation cancels a job. Cancelled is terminal.
func (s *EvaluationService) CancelEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error) {
	return s.changeStatus(ctx, jobID, models.StatusCancelled)
}

func (s *EvaluationService) changeStatus(ctx context.Context, jobID string, next models.Status) (*models.EvaluationJob, error) {
	unlock := s.jobLocks.lock(jobID)
	defer unlock()

	job, err := s.getJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, job, next); err != nil {
		return nil, err
	}
	return job, nil
}

// transition moves the job and saves it.
func (s *EvaluationService) transition(ctx context.Context, job *models.EvaluationJob, next models.Status) error {
	if job.Status == next {
		return nil
	}
	if err := job.TransitionTo(next, s.now()); err != nil {
		return err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		return fmt.Errorf("service: failed to save evaluation %s: %w", job.ID, err)
	}
	s.metrics.IncrementEvaluationStatus(string(job.Status), string(job.Purpose))
	return nil
}

func (s *EvaluationService) getJob(ctx context.Context, id string) (*models.EvaluationJob, error) {
	job, err := s.jobs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: evaluation %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("service: failed to load evaluation %s: %w", id, err)
	}
	return job, nil
}

// keyedMutex serializes work per key. Locations are locked for a whole refresh so
// two refreshes never interleave their read-modify-write; jobs are locked only
// around each load-modify-save of the job record.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
