package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/service"
)

// LocationResolver interface for dependency injection
type LocationResolver interface {
	GetLocation(ctx context.Context, id string) (*models.Location, error)
	ResolveByAddress(ctx context.Context, address string) (*models.Location, error)
	ResolveByTitle(ctx context.Context, titleReference string) (*models.Location, error)
	ResolveByCoordinates(ctx context.Context, lat, lon float64) (*models.Location, error)
	FindNearby(ctx context.Context, lat, lon, radiusM float64) ([]service.NearbyLocation, error)
}

// LocationRefresher interface for dependency injection
type LocationRefresher interface {
	RefreshLocation(ctx context.Context, locationID string, categories []models.Category) (*models.Location, *service.RefreshResult, error)
	Completeness(ctx context.Context, locationID string) (*models.CompletenessReport, error)
}

// LocationHandler handles location resolution and refresh requests
type LocationHandler struct {
	resolver  LocationResolver
	refresher LocationRefresher
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(resolver LocationResolver, refresher LocationRefresher) *LocationHandler {
	return &LocationHandler{resolver: resolver, refresher: refresher}
}

type resolveRequest struct {
	Address        string   `json:"address"`
	TitleReference string   `json:"title_reference"`
	Latitude       *float64 `json:"latitude"`
	Longitude      *float64 `json:"longitude"`
}

// Resolve handles POST /locations/resolve requests
func (h *LocationHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var (
		loc *models.Location
		err error
	)
	switch {
	case strings.TrimSpace(req.Address) != "":
		loc, err = h.resolver.ResolveByAddress(ctx, req.Address)
	case strings.TrimSpace(req.TitleReference) != "":
		loc, err = h.resolver.ResolveByTitle(ctx, req.TitleReference)
	case req.Latitude != nil && req.Longitude != nil:
		loc, err = h.resolver.ResolveByCoordinates(ctx, *req.Latitude, *req.Longitude)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of address, title_reference or latitude and longitude is required"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loc)
}

// Get handles GET /locations/:id requests
func (h *LocationHandler) Get(c *gin.Context) {
	loc, err := h.resolver.GetLocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// Nearby handles GET /locations/nearby requests
func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, lon, ok := queryCoordinates(c)
	if !ok {
		return
	}

	radius := service.DefaultProximityRadiusM
	if s := c.Query("radius_m"); s != "" {
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius format"})
			return
		}
		radius = r
	}

	nearby, err := h.resolver.FindNearby(c.Request.Context(), lat, lon, radius)
	if err != nil {
		respondError(c, err)
		return
	}
	if nearby == nil {
		nearby = []service.NearbyLocation{}
	}
	c.JSON(http.StatusOK, nearby)
}

// Refresh handles POST /locations/:id/refresh requests
func (h *LocationHandler) Refresh(c *gin.Context) {
	categories, ok := bindCategories(c)
	if !ok {
		return
	}

	loc, result, err := h.refresher.RefreshLocation(c.Request.Context(), c.Param("id"), categories)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": loc, "refresh": result})
}

// Completeness handles GET /locations/:id/completeness requests
func (h *LocationHandler) Completeness(c *gin.Context) {
	report, err := h.refresher.Completeness(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
