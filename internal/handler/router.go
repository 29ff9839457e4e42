package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Handlers groups everything the router mounts. Nil handlers are skipped.
type Handlers struct {
	GeoCode        *GeoCodeHandler
	ReverseGeocode *ReverseGeocodeHandler
	Locations      *LocationHandler
	Evaluations    *EvaluationHandler
	Metrics        http.Handler
}

// NewRouter builds the gin engine with every route.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if h.GeoCode != nil {
		r.GET("/geocode", h.GeoCode.GeoCode)
	}
	if h.ReverseGeocode != nil {
		r.GET("/reverse-geocode", h.ReverseGeocode.ReverseGeocode)
	}

	if h.Locations != nil {
		locations := r.Group("/locations")
		locations.POST("/resolve", h.Locations.Resolve)
		locations.GET("/nearby", h.Locations.Nearby)
		locations.GET("/:id", h.Locations.Get)
		locations.POST("/:id/refresh", h.Locations.Refresh)
		locations.GET("/:id/completeness", h.Locations.Completeness)
		if h.Evaluations != nil {
			locations.GET("/:id/evaluations", h.Evaluations.ListByLocation)
		}
	}

	if h.Evaluations != nil {
		evaluations := r.Group("/evaluations")
		evaluations.POST("", h.Evaluations.Create)
		evaluations.GET("/:id", h.Evaluations.Get)
		evaluations.POST("/:id/run", h.Evaluations.Run)
		evaluations.POST("/:id/hold", h.Evaluations.Hold)
		evaluations.POST("/:id/resume", h.Evaluations.Resume)
		evaluations.POST("/:id/cancel", h.Evaluations.Cancel)
	}

	return r
}

// requestLogger logs one line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
