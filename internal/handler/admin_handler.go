package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
)

// AdminHandler handles content ingestion.
type AdminHandler struct {
	examService *service.ExamService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(examService *service.ExamService) *AdminHandler {
	return &AdminHandler{examService: examService}
}

// CreateExam godoc
// POST /api/v1/admin/exams
func (h *AdminHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.CreateExam(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// CreatePaper godoc
// POST /api/v1/admin/exams/:id/papers
func (h *AdminHandler) CreatePaper(c *gin.Context) {
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.CreatePaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	paper, err := h.examService.CreatePaper(c.Request.Context(), examID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"paper": paper})
}

// ReplaceQuestions godoc
// PUT /api/v1/admin/papers/:id/questions
// Replaces the whole question set. Every question's options and answer key
// must resolve; the first rejected entry is reported by index.
func (h *AdminHandler) ReplaceQuestions(c *gin.Context) {
	paperID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req model.ReplaceQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	n, err := h.examService.ReplaceQuestions(c.Request.Context(), paperID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper_id": paperID, "questions": n})
}

// RefreshPaperCache godoc
// POST /api/v1/admin/papers/:id/refresh-cache
func (h *AdminHandler) RefreshPaperCache(c *gin.Context) {
	paperID, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := h.examService.RefreshPaperCache(c.Request.Context(), paperID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper_id": paperID})
}
