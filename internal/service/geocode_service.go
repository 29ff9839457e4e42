package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// searchLimit caps the number of address candidates returned by a search.
const searchLimit = 10

// GeoCodeService contains the core business logic for geocoding operations
type GeoCodeService struct {
	repo GeoCodeRepository
}

// GeoCodeRepository interface for dependency injection
type GeoCodeRepository interface {
	SearchAddresses(ctx context.Context, query string, limit int) ([]models.AddressPoint, error)
}

// NewGeoCodeService creates a new geo code service
func NewGeoCodeService(repo GeoCodeRepository) *GeoCodeService {
	return &GeoCodeService{repo: repo}
}

// Geocode searches the address register by text
func (s *GeoCodeService) Geocode(ctx context.Context, address string) ([]models.AddressPoint, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("%w: address cannot be empty", ErrInvalidInput)
	}

	points, err := s.repo.SearchAddresses(ctx, address, searchLimit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to search addresses: %w", err)
	}

	return points, nil
}

// Locate returns the best address match. An exact match on the normalized
// address wins over the search ranking.
func (s *GeoCodeService) Locate(ctx context.Context, address string) (*models.AddressPoint, error) {
	points, err := s.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no address matches %q", ErrNotFound, address)
	}

	want := models.NormalizeAddress(address)
	for i := range points {
		p := &points[i]
		if models.NormalizeAddress(p.FullAddress) == want || models.NormalizeAddress(p.Formatted()) == want {
			return p, nil
		}
	}
	return &points[0], nil
}
