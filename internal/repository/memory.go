package repository

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// ErrAlreadyExists is returned when inserting a duplicate id.
var ErrAlreadyExists = errors.New("repository: already exists")

// InMemoryLocationStore keeps locations in a map. Reads and writes work on copies
// so callers never share a record with the store.
type InMemoryLocationStore struct {
	mu        sync.RWMutex
	locations map[string]models.Location
}

// NewInMemoryLocationStore creates an empty store.
func NewInMemoryLocationStore() *InMemoryLocationStore {
	return &InMemoryLocationStore{locations: make(map[string]models.Location)}
}

func (s *InMemoryLocationStore) GetByID(_ context.Context, id string) (*models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &loc, nil
}

func (s *InMemoryLocationStore) FindByTitle(_ context.Context, titleReference string) ([]models.Location, error) {
	return s.filter(func(l *models.Location) bool {
		return titleReference != "" && l.TitleReference == titleReference
	}), nil
}

// FindInBounds scans every record; the bounding box stands in for a spatial index.
func (s *InMemoryLocationStore) FindInBounds(_ context.Context, box geo.BoundingBox) ([]models.Location, error) {
	return s.filter(func(l *models.Location) bool {
		return l.CoordinatesResolved && box.Contains(l.Latitude, l.Longitude)
	}), nil
}

func (s *InMemoryLocationStore) Insert(_ context.Context, loc *models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[loc.ID]; ok {
		return ErrAlreadyExists
	}
	s.locations[loc.ID] = *loc
	return nil
}

func (s *InMemoryLocationStore) Update(_ context.Context, loc *models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.locations[loc.ID]; !ok {
		return ErrNotFound
	}
	s.locations[loc.ID] = *loc
	return nil
}

// filter returns matches ordered by creation time so results are deterministic.
func (s *InMemoryLocationStore) filter(match func(*models.Location) bool) []models.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Location
	for _, loc := range s.locations {
		if match(&loc) {
			out = append(out, loc)
		}
	}
	slices.SortFunc(out, func(a, b models.Location) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// InMemoryJobStore keeps evaluation jobs in a map.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]models.EvaluationJob
}

// NewInMemoryJobStore creates an empty store.
func NewInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{jobs: make(map[string]models.EvaluationJob)}
}

func (s *InMemoryJobStore) GetByID(_ context.Context, id string) (*models.EvaluationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneJob(job)
	return &cp, nil
}

func (s *InMemoryJobStore) ListByLocation(_ context.Context, locationID string) ([]models.EvaluationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.EvaluationJob
	for _, job := range s.jobs {
		if job.LocationID == locationID {
			out = append(out, cloneJob(job))
		}
	}
	slices.SortFunc(out, func(a, b models.EvaluationJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemoryJobStore) Insert(_ context.Context, job *models.EvaluationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrAlreadyExists
	}
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func (s *InMemoryJobStore) Update(_ context.Context, job *models.EvaluationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return ErrNotFound
	}
	s.jobs[job.ID] = cloneJob(*job)
	return nil
}

func cloneJob(job models.EvaluationJob) models.EvaluationJob {
	job.Sections = maps.Clone(job.Sections)
	job.Gaps = slices.Clone(job.Gaps)
	return job
}

// InMemoryAddressIndex serves address search, reverse geocoding and title lookups
// from points held in memory. It backs the memory store driver and tests.
type InMemoryAddressIndex struct {
	mu     sync.RWMutex
	points []models.AddressPoint
	keys   []string
	nextID int64
}

// NewInMemoryAddressIndex creates an index holding the given points.
func NewInMemoryAddressIndex(points ...models.AddressPoint) *InMemoryAddressIndex {
	idx := &InMemoryAddressIndex{}
	idx.Load(points)
	return idx
}

// Load appends points, assigning ids to any without one.
func (s *InMemoryAddressIndex) Load(points []models.AddressPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		if p.ID == 0 {
			s.nextID++
			p.ID = s.nextID
		} else if p.ID > s.nextID {
			s.nextID = p.ID
		}
		s.points = append(s.points, p)
		s.keys = append(s.keys, models.NormalizeAddress(p.FullAddress+" "+p.Suburb+" "+p.City))
	}
}

// SearchAddresses returns points whose address contains every query term.
func (s *InMemoryAddressIndex) SearchAddresses(_ context.Context, query string, limit int) ([]models.AddressPoint, error) {
	terms := strings.Fields(models.NormalizeAddress(query))
	if len(terms) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.AddressPoint
	for i, key := range s.keys {
		if containsAll(key, terms) {
			out = append(out, s.points[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func containsAll(key string, terms []string) bool {
	words := strings.Fields(key)
	for _, t := range terms {
		if !slices.Contains(words, t) {
			return false
		}
	}
	return true
}

// FindNearestAddress returns the closest point within nearestAddressMaxM.
func (s *InMemoryAddressIndex) FindNearestAddress(_ context.Context, lat, lon float64) (*models.AddressPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, bestDist := -1, float64(nearestAddressMaxM)
	for i, p := range s.points {
		d := geo.DistanceMeters(lat, lon, p.Latitude, p.Longitude)
		if d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil, ErrNotFound
	}
	p := s.points[best]
	return &p, nil
}

// FindAddressByTitle returns the first point registered against the title.
func (s *InMemoryAddressIndex) FindAddressByTitle(_ context.Context, titleReference string) (*models.AddressPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.points {
		if titleReference != "" && p.TitleReference == titleReference {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}
