package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/models"
	"github.com/nzpropertytax/MaxPayroll.SiteEvaluator-sub000/internal/service"
)

// EvaluationService interface for dependency injection
type EvaluationService interface {
	CreateEvaluation(ctx context.Context, req service.EvaluationRequest) (*service.Evaluation, error)
	RunEvaluation(ctx context.Context, jobID string, categories []models.Category) (*service.Evaluation, error)
	GetEvaluation(ctx context.Context, jobID string) (*service.Evaluation, error)
	ListEvaluations(ctx context.Context, locationID string) ([]models.EvaluationJob, error)
	HoldEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error)
	ResumeEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error)
	CancelEvaluation(ctx context.Context, jobID string) (*models.EvaluationJob, error)
}

// EvaluationHandler handles evaluation job requests
type EvaluationHandler struct {
	service EvaluationService
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(svc EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{service: svc}
}

// Create handles POST /evaluations requests
func (h *EvaluationHandler) Create(c *gin.Context) {
	var req service.EvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	evaluation, err := h.service.CreateEvaluation(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, evaluation)
}

// Get handles GET /evaluations/:id requests
func (h *EvaluationHandler) Get(c *gin.Context) {
	evaluation, err := h.service.GetEvaluation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

// ListByLocation handles GET /locations/:id/evaluations requests
func (h *EvaluationHandler) ListByLocation(c *gin.Context) {
	jobs, err := h.service.ListEvaluations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []models.EvaluationJob{}
	}
	c.JSON(http.StatusOK, jobs)
}

// Run handles POST /evaluations/:id/run requests
func (h *EvaluationHandler) Run(c *gin.Context) {
	categories, ok := bindCategories(c)
	if !ok {
		return
	}

	evaluation, err := h.service.RunEvaluation(c.Request.Context(), c.Param("id"), categories)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

// Hold handles POST /evaluations/:id/hold requests
func (h *EvaluationHandler) Hold(c *gin.Context) {
	h.transition(c, h.service.HoldEvaluation)
}

// Resume handles POST /evaluations/:id/resume requests
func (h *EvaluationHandler) Resume(c *gin.Context) {
	h.transition(c, h.service.ResumeEvaluation)
}

// Cancel handles POST /evaluations/:id/cancel requests
func (h *EvaluationHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.CancelEvaluation)
}

func (h *EvaluationHandler) transition(c *gin.Context, fn func(context.Context, string) (*models.EvaluationJob, error)) {
	job, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
