package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
)

// AttemptHandler serves attempt history, reviews and analysis.
type AttemptHandler struct {
	attemptService  *service.AttemptService
	analysisService *service.AnalysisService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService, analysisService *service.AnalysisService) *AttemptHandler {
	return &AttemptHandler{
		attemptService:  attemptService,
		analysisService: analysisService,
	}
}

// ListAttempts godoc
// GET /api/v1/user/attempts?page=1&per_page=20
// Newest first.
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	attempts, pagination, err := h.attemptService.List(c.Request.Context(), uid, page, perPage)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}

// CreateAttempt godoc
// POST /api/v1/attempts
// Records an attempt scored by the client.
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req model.CreateAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.attemptService.Create(c.Request.Context(), uid, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"attempt": a})
}

// GetAttempt godoc
// GET /api/v1/attempts/:id
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	a, err := h.attemptService.Get(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a})
}

// UpdateAttempt godoc
// PATCH /api/v1/attempts/:id
func (h *AttemptHandler) UpdateAttempt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.attemptService.Update(c.Request.Context(), uid, id, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": a})
}

// ReviewAttempt godoc
// GET /api/v1/attempts/:id/review
// Per-question outcome of a finished attempt, with the answer key.
func (h *AttemptHandler) ReviewAttempt(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	review, err := h.attemptService.Review(c.Request.Context(), uid, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"review": review})
}

// GetAnalysis godoc
// GET /api/v1/user/analysis
func (h *AttemptHandler) GetAnalysis(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	analysis, err := h.analysisService.ForUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"analysis": analysis})
}
