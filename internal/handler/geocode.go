package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
)

// GeoCodeHandler handles address search requests
type GeoCodeHandler struct {
	service GeoCodeService
}

// GeoCodeService interface for dependency injection
type GeoCodeService interface {
	Geocode(context.Context, string) ([]models.AddressPoint, error)
}

// NewGeoCodeHandler creates a new geocode handler
func NewGeoCodeHandler(svc GeoCodeService) *GeoCodeHandler {
	return &GeoCodeHandler{service: svc}
}

// GeoCode handles GET /geocode requests
func (h *GeoCodeHandler) GeoCode(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'q'"})
		return
	}

	points, err := h.service.Geocode(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	if points == nil {
		points = []models.AddressPoint{}
	}

	c.JSON(http.StatusOK, points)
}
