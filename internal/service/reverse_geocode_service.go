package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/geo"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

// ReverseGeoCodeService contains the core business logic for reverse geocoding operations
type ReverseGeoCodeService struct {
	repo ReverseGeoCodeRepository
}

// ReverseGeoCodeRepository interface for dependency injection
type ReverseGeoCodeRepository interface {
	FindNearestAddress(ctx context.Context, lat, lon float64) (*models.AddressPoint, error)
}

// NewReverseGeoCodeService creates a new reverse geo code service
func NewReverseGeoCodeService(repo ReverseGeoCodeRepository) *ReverseGeoCodeService {
	return &ReverseGeoCodeService{repo: repo}
}

// ReverseGeocode finds the nearest address to the given coordinates using spatial query
func (s *ReverseGeoCodeService) ReverseGeocode(ctx context.Context, lat, lon float64) (*models.AddressPoint, error) {
	if !geo.IsValidCoordinate(lat, lon) {
		return nil, fmt.Errorf("%w: %f, %f", ErrInvalidCoordinates, lat, lon)
	}

	point, err := s.repo.FindNearestAddress(ctx, lat, lon)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: no address near %f, %f", ErrNotFound, lat, lon)
		}
		return nil, fmt.Errorf("service: failed to find nearest address: %w", err)
	}

	return point, nil
}
