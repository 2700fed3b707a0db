package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
)

// PurchaseHandler handles enrollment and access checks.
type PurchaseHandler struct {
	examService *service.ExamService
}

// NewPurchaseHandler creates a new PurchaseHandler.
func NewPurchaseHandler(examService *service.ExamService) *PurchaseHandler {
	return &PurchaseHandler{examService: examService}
}

// ListPurchases godoc
// GET /api/v1/user/purchases
func (h *PurchaseHandler) ListPurchases(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	purchases, err := h.examService.ListPurchases(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"purchases": purchases})
}

// CreatePurchase godoc
// POST /api/v1/purchases
// Grants access to an exam. The type defaults to premium.
func (h *PurchaseHandler) CreatePurchase(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req model.CreatePurchaseRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	p, err := h.examService.Purchase(c.Request.Context(), uid, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"purchase": p})
}

// EnrollFree godoc
// POST /api/v1/exams/:id/enroll-free
func (h *PurchaseHandler) EnrollFree(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}

	p, err := h.examService.EnrollFree(c.Request.Context(), uid, examID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"purchase": p})
}

// CheckAccess godoc
// GET /api/v1/exams/:id/access
func (h *PurchaseHandler) CheckAccess(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	examID, ok := paramID(c, "id")
	if !ok {
		return
	}

	access, err := h.examService.Access(c.Request.Context(), uid, examID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, access)
}
