package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
)

// CatalogHandler serves the public exam catalog.
type CatalogHandler struct {
	examService *service.ExamService
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(examService *service.ExamService) *CatalogHandler {
	return &CatalogHandler{examService: examService}
}

// ListExams godoc
// GET /api/v1/exams
// Popular exams first, then by name.
func (h *CatalogHandler) ListExams(c *gin.Context) {
	exams, err := h.examService.ListExams(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetExam godoc
// GET /api/v1/exams/:id
func (h *CatalogHandler) GetExam(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	exam, err := h.examService.GetExam(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// ListPapers godoc
// GET /api/v1/exams/:id/papers
// Newest year first.
func (h *CatalogHandler) ListPapers(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	papers, err := h.examService.ListPapers(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"papers": papers})
}

// GetPaper godoc
// GET /api/v1/papers/:id
func (h *CatalogHandler) GetPaper(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	paper, err := h.examService.GetPaper(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// ListQuestions godoc
// GET /api/v1/papers/:id/questions
// Questions in number order without the answer key.
func (h *CatalogHandler) ListQuestions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	questions, err := h.examService.StudentQuestions(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}
