package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
)

type DoubtHandler struct {
	doubtService *service.DoubtService
}

func NewDoubtHandler(doubtService *service.DoubtService) *DoubtHandler {
	return &DoubtHandler{doubtService: doubtService}
}

// Ask godoc
// POST /api/v1/doubts
func (h *DoubtHandler) Ask(c *gin.Context) {
	var req model.DoubtRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	res, err := h.doubtService.Ask(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
