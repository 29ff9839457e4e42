package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/service"
)

// MockLocationResolver is a mock implementation of the LocationResolver interface
type MockLocationResolver struct {
	mock.Mock
}

func (m *MockLocationResolver) location(args mock.Arguments) (*models.Location, error) {
	loc, _ := args.Get(0).(*models.Location)
	return loc, args.Error(1)
}

func (m *MockLocationResolver) GetLocation(ctx context.Context, id string) (*models.Location, error) {
	return m.location(m.Called(ctx, id))
}

func (m *MockLocationResolver) ResolveByAddress(ctx context.Context, address string) (*models.Location, error) {
	return m.location(m.Called(ctx, address))
}

func (m *MockLocationResolver) ResolveByTitle(ctx context.Context, titleReference string) (*models.Location, error) {
	return m.location(m.Called(ctx, titleReference))
}

func (m *MockLocationResolver) ResolveByCoordinates(ctx context.Context, lat, lon float64) (*models.Location, error) {
	return m.location(m.Called(ctx, lat, lon))
}

func (m *MockLocationResolver) FindNearby(ctx context.Context, lat, lon, radiusM float64) ([]service.NearbyLocation, error) {
	args := m.Called(ctx, lat, lon, radiusM)
	nearby, _ := args.Get(0).([]service.NearbyLocation)
	return nearby, args.Error(1)
}

// MockLocationRefresher is a mock implementation of the LocationRefresher interface
type MockLocationRefresher struct {
	mock.Mock
}

func (m *MockLocationRefresher) RefreshLocation(ctx context.Context, locationID string, categories []models.Category) (*models.Location, *service.RefreshResult, error) {
	args := m.Called(ctx, locationID, categories)
	loc, _ := args.Get(0).(*models.Location)
	result, _ := args.Get(1).(*service.RefreshResult)
	return loc, result, args.Error(2)
}

func (m *MockLocationRefresher) Completeness(ctx context.Context, locationID string) (*models.CompletenessReport, error) {
	args := m.Called(ctx, locationID)
	report, _ := args.Get(0).(*models.CompletenessReport)
	return report, args.Error(1)
}

var cathedralLocation = models.Location{
	ID:                  "loc-1",
	FormattedAddress:    "100 Cathedral Square, Christchurch Central, Christchurch",
	TitleReference:      "CB1A/100",
	Latitude:            -43.5320,
	Longitude:           172.6362,
	CoordinatesResolved: true,
	Source:              models.SourceAddressSearch,
	ConfidenceScore:     models.ConfidenceRegistry,
	CreatedAt:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	UpdatedAt:           time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
}

func newLocationRouter(resolver *MockLocationResolver, refresher *MockLocationRefresher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Handlers{Locations: NewLocationHandler(resolver, refresher)})
}

func serve(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestLocationHandler_Resolve(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setup          func(m *MockLocationResolver)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "by address",
			body: `{"address":"100 Cathedral Square"}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByAddress", mock.Anything, "100 Cathedral Square").Return(&cathedralLocation, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "address wins over title",
			body: `{"address":"100 Cathedral Square","title_reference":"CB1A/100"}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByAddress", mock.Anything, "100 Cathedral Square").Return(&cathedralLocation, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "by title",
			body: `{"title_reference":"CB1A/100"}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByTitle", mock.Anything, "CB1A/100").Return(&cathedralLocation, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "by coordinates",
			body: `{"latitude":-43.532,"longitude":172.6362}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByCoordinates", mock.Anything, -43.532, 172.6362).Return(&cathedralLocation, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "nothing to resolve",
			body:           `{"latitude":-43.532}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "one of address, title_reference or latitude and longitude is required",
		},
		{
			name:           "malformed body",
			body:           `{"address":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name: "invalid coordinates",
			body: `{"latitude":-95,"longitude":172.6362}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByCoordinates", mock.Anything, -95.0, 172.6362).Return(nil, service.ErrInvalidCoordinates)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  service.ErrInvalidCoordinates.Error(),
		},
		{
			name: "store failure",
			body: `{"title_reference":"CB1A/100"}`,
			setup: func(m *MockLocationResolver) {
				m.On("ResolveByTitle", mock.Anything, "CB1A/100").Return(nil, assert.AnError)
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			resolver := new(MockLocationResolver)
			if tt.setup != nil {
				tt.setup(resolver)
			}
			r := newLocationRouter(resolver, new(MockLocationRefresher))

			// Execute
			w := serve(r, http.MethodPost, "/locations/resolve", tt.body)

			// Assert
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorBody(t, w))
			} else {
				var loc models.Location
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
				assert.Equal(t, cathedralLocation.ID, loc.ID)
				assert.True(t, loc.CoordinatesResolved)
			}
			resolver.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_Get(t *testing.T) {
	resolver := new(MockLocationResolver)
	resolver.On("GetLocation", mock.Anything, "loc-1").Return(&cathedralLocation, nil)
	resolver.On("GetLocation", mock.Anything, "missing").Return(nil, fmt.Errorf("%w: location missing", service.ErrNotFound))
	r := newLocationRouter(resolver, new(MockLocationRefresher))

	w := serve(r, http.MethodGet, "/locations/loc-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var loc models.Location
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	assert.Equal(t, "CB1A/100", loc.TitleReference)

	w = serve(r, http.MethodGet, "/locations/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, errorBody(t, w), "location missing")

	resolver.AssertExpectations(t)
}

func TestLocationHandler_Nearby(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setup          func(m *MockLocationResolver)
		expectedStatus int
		expectedCount  int
		expectedError  string
	}{
		{
			name:  "default radius",
			query: "lat=-43.532&lon=172.6362",
			setup: func(m *MockLocationResolver) {
				m.On("FindNearby", mock.Anything, -43.532, 172.6362, service.DefaultProximityRadiusM).
					Return([]service.NearbyLocation{{Location: cathedralLocation, DistanceM: 3.2}}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  1,
		},
		{
			name:  "explicit radius with no matches",
			query: "lat=-43.532&lon=172.6362&radius_m=250",
			setup: func(m *MockLocationResolver) {
				m.On("FindNearby", mock.Anything, -43.532, 172.6362, 250.0).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedCount:  0,
		},
		{
			name:           "invalid radius",
			query:          "lat=-43.532&lon=172.6362&radius_m=wide",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid radius format",
		},
		{
			name:           "missing coordinates",
			query:          "lat=-43.532",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "missing required query parameters 'lat' and 'lon'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := new(MockLocationResolver)
			if tt.setup != nil {
				tt.setup(resolver)
			}
			r := newLocationRouter(resolver, new(MockLocationRefresher))

			w := serve(r, http.MethodGet, "/locations/nearby?"+tt.query, "")

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorBody(t, w))
			} else {
				var nearby []service.NearbyLocation
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nearby))
				assert.NotNil(t, nearby)
				assert.Len(t, nearby, tt.expectedCount)
			}
			resolver.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_Refresh(t *testing.T) {
	result := &service.RefreshResult{
		LocationID:  "loc-1",
		RefreshedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Outcomes: map[models.Category]service.CategoryOutcome{
			models.CategoryZoning: {Status: service.OutcomeUpdated, Providers: []string{"district-plan"}},
		},
	}

	tests := []struct {
		name           string
		body           string
		setup          func(m *MockLocationRefresher)
		expectedStatus int
		expectedError  string
	}{
		{
			name: "all stale categories",
			setup: func(m *MockLocationRefresher) {
				m.On("RefreshLocation", mock.Anything, "loc-1", []models.Category(nil)).
					Return(&cathedralLocation, result, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "explicit categories",
			body: `{"categories":["zoning","hazard","zoning"]}`,
			setup: func(m *MockLocationRefresher) {
				m.On("RefreshLocation", mock.Anything, "loc-1", []models.Category{models.CategoryZoning, models.CategoryHazard}).
					Return(&cathedralLocation, result, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown category",
			body:           `{"categories":["weather"]}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  `models: unknown category "weather"`,
		},
		{
			name:           "malformed body",
			body:           `{"categories":"zoning"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name: "unknown location",
			setup: func(m *MockLocationRefresher) {
				m.On("RefreshLocation", mock.Anything, "loc-1", []models.Category(nil)).
					Return(nil, nil, service.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedError:  service.ErrNotFound.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresher := new(MockLocationRefresher)
			if tt.setup != nil {
				tt.setup(refresher)
			}
			r := newLocationRouter(new(MockLocationResolver), refresher)

			w := serve(r, http.MethodPost, "/locations/loc-1/refresh", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, errorBody(t, w))
			} else {
				var body struct {
					Location models.Location      `json:"location"`
					Refresh  service.RefreshResult `json:"refresh"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, "loc-1", body.Location.ID)
				assert.Equal(t, service.OutcomeUpdated, body.Refresh.Outcomes[models.CategoryZoning].Status)
			}
			refresher.AssertExpectations(t)
		})
	}
}

func TestLocationHandler_Completeness(t *testing.T) {
	refresher := new(MockLocationRefresher)
	refresher.On("Completeness", mock.Anything, "loc-1").Return(&models.CompletenessReport{
		Sections: map[models.Category]models.DataSectionStatus{
			models.CategoryZoning: {Status: models.SectionComplete, EvidenceField: "zone_code"},
		},
		CompleteCount: 1,
		MissingCount:  5,
		Percentage:    100.0 / 6,
	}, nil)
	r := newLocationRouter(new(MockLocationResolver), refresher)

	w := serve(r, http.MethodGet, "/locations/loc-1/completeness", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var report models.CompletenessReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.CompleteCount)
	assert.InDelta(t, 16.67, report.Percentage, 0.01)
	assert.Equal(t, models.SectionComplete, report.Sections[models.CategoryZoning].Status)
	refresher.AssertExpectations(t)
}
