package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// MockGeoCodeRepository is a mock implementation of the GeoCodeRepository interface
type MockGeoCodeRepository struct {
	mock.Mock
}

// SearchAddresses implements GeoCodeRepository.
func (m *MockGeoCodeRepository) SearchAddresses(ctx context.Context, query string, limit int) ([]models.AddressPoint, error) {
	args := m.Called(ctx, query, limit)
	return args.Get(0).([]models.AddressPoint), args.Error(1)
}

var cathedralSquare = models.AddressPoint{
	ID:                   1,
	FullAddress:          "100 Cathedral Square",
	Suburb:               "Christchurch Central",
	City:                 "Christchurch",
	TerritorialAuthority: "Christchurch City",
	RegionalCouncil:      "Canterbury Region",
	TitleReference:       "CB1A/100",
	LegalDescription:     "Lot 1 DP 1000",
	Latitude:             -43.5320,
	Longitude:            172.6362,
	Accuracy:             models.AccuracyRegistry,
}

func TestGeoCodeService_Geocode(t *testing.T) {
	tests := []struct {
		name        string
		address     string
		mockPoints  []models.AddressPoint
		mockError   error
		expected    []models.AddressPoint
		expectError error
	}{
		{
			name:        "empty address",
			address:     "   ",
			expectError: ErrInvalidInput,
		},
		{
			name:       "successful search with results",
			address:    "100 Cathedral Square",
			mockPoints: []models.AddressPoint{cathedralSquare},
			expected:   []models.AddressPoint{cathedralSquare},
		},
		{
			name:       "successful search with no results",
			address:    "nonexistent address",
			mockPoints: []models.AddressPoint{},
			expected:   []models.AddressPoint{},
		},
		{
			name:        "repository error",
			address:     "100 Cathedral Square",
			mockPoints:  []models.AddressPoint(nil),
			mockError:   assert.AnError,
			expectError: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockGeoCodeRepository)
			service := NewGeoCodeService(mockRepo)

			if tt.expectError != ErrInvalidInput {
				mockRepo.On("SearchAddresses", mock.Anything, tt.address, searchLimit).Return(tt.mockPoints, tt.mockError)
			}

			result, err := service.Geocode(context.Background(), tt.address)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestGeoCodeService_Locate(t *testing.T) {
	first := models.AddressPoint{ID: 7, FullAddress: "100 Cathedral Square Annex", City: "Christchurch", Latitude: -43.5321, Longitude: 172.6365}

	t.Run("exact normalized match beats ranking", func(t *testing.T) {
		mockRepo := new(MockGeoCodeRepository)
		mockRepo.On("SearchAddresses", mock.Anything, "100 cathedral square, christchurch central", searchLimit).
			Return([]models.AddressPoint{first, cathedralSquare}, nil)

		point, err := NewGeoCodeService(mockRepo).Locate(context.Background(), "100 cathedral square, christchurch central")

		require.NoError(t, err)
		assert.Equal(t, int64(1), point.ID)
	})

	t.Run("falls back to best ranked", func(t *testing.T) {
		mockRepo := new(MockGeoCodeRepository)
		mockRepo.On("SearchAddresses", mock.Anything, "cathedral square", searchLimit).
			Return([]models.AddressPoint{first, cathedralSquare}, nil)

		point, err := NewGeoCodeService(mockRepo).Locate(context.Background(), "cathedral square")

		require.NoError(t, err)
		assert.Equal(t, int64(7), point.ID)
	})

	t.Run("no results", func(t *testing.T) {
		mockRepo := new(MockGeoCodeRepository)
		mockRepo.On("SearchAddresses", mock.Anything, "nowhere", searchLimit).Return([]models.AddressPoint{}, nil)

		_, err := NewGeoCodeService(mockRepo).Locate(context.Background(), "nowhere")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}
