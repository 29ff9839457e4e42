package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/repository"
)

// MockReverseGeoCodeRepository is a mock implementation of the ReverseGeoCodeRepository interface
type MockReverseGeoCodeRepository struct {
	mock.Mock
}

// FindNearestAddress implements ReverseGeoCodeRepository.
func (m *MockReverseGeoCodeRepository) FindNearestAddress(ctx context.Context, lat float64, lon float64) (*models.AddressPoint, error) {
	args := m.Called(ctx, lat, lon)
	return args.Get(0).(*models.AddressPoint), args.Error(1)
}

func TestReverseGeoCodeService_ReverseGeocode(t *testing.T) {
	tests := []struct {
		name        string
		lat         float64
		lon         float64
		skipRepo    bool
		mockPoint   *models.AddressPoint
		mockError   error
		expected    *models.AddressPoint
		expectError error
	}{
		{
			name:        "latitude out of range",
			lat:         -95,
			lon:         172.6362,
			skipRepo:    true,
			expectError: ErrInvalidCoordinates,
		},
		{
			name:      "successful search with result",
			lat:       -43.5320,
			lon:       172.6362,
			mockPoint: &cathedralSquare,
			expected:  &cathedralSquare,
		},
		{
			name:        "nothing within range",
			lat:         -43.5320,
			lon:         172.6362,
			mockPoint:   (*models.AddressPoint)(nil),
			mockError:   repository.ErrNotFound,
			expectError: ErrNotFound,
		},
		{
			name:        "repository error",
			lat:         -43.5320,
			lon:         172.6362,
			mockPoint:   (*models.AddressPoint)(nil),
			mockError:   assert.AnError,
			expectError: assert.AnError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockReverseGeoCodeRepository)
			service := NewReverseGeoCodeService(mockRepo)

			if !tt.skipRepo {
				mockRepo.On("FindNearestAddress", mock.Anything, tt.lat, tt.lon).Return(tt.mockPoint, tt.mockError)
			}

			result, err := service.ReverseGeocode(context.Background(), tt.lat, tt.lon)

			if tt.expectError != nil {
				assert.ErrorIs(t, err, tt.expectError)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}
