package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exprep-backend/internal/model"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
	"github.com/stemsi/exprep-backend/internal/validator"
)

// PracticeHandler exposes the practice session over REST. The countdown only
// advances while a stream connection is attached.
type PracticeHandler struct {
	practice *service.PracticeService
}

// NewPracticeHandler creates a new PracticeHandler.
func NewPracticeHandler(practice *service.PracticeService) *PracticeHandler {
	return &PracticeHandler{practice: practice}
}

func (h *PracticeHandler) respondView(c *gin.Context, status int, v *service.SessionView, err error) {
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, status, gin.H{"session": v})
}

// StartSession godoc
// POST /api/v1/session
// Starts an exam, browse or instant session, replacing the current one.
func (h *PracticeHandler) StartSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.practice.Start(c.Request.Context(), uid, &req)
	h.respondView(c, http.StatusCreated, v, err)
}

// GetSession godoc
// GET /api/v1/session
func (h *PracticeHandler) GetSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	v, err := h.practice.Get(c.Request.Context(), uid)
	h.respondView(c, http.StatusOK, v, err)
}

// EndSession godoc
// DELETE /api/v1/session
// Discards the session without recording an attempt.
func (h *PracticeHandler) EndSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	if err := h.practice.End(c.Request.Context(), uid); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// PauseSession godoc
// POST /api/v1/session/pause
func (h *PracticeHandler) PauseSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	v, err := h.practice.Pause(c.Request.Context(), uid)
	h.respondView(c, http.StatusOK, v, err)
}

// ResumeSession godoc
// POST /api/v1/session/resume
func (h *PracticeHandler) ResumeSession(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	v, err := h.practice.Resume(c.Request.Context(), uid)
	h.respondView(c, http.StatusOK, v, err)
}

// Navigate godoc
// POST /api/v1/session/navigate
// Out-of-range moves are ignored and return the unchanged session.
func (h *PracticeHandler) Navigate(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req model.NavigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.practice.Navigate(c.Request.Context(), uid, &req)
	h.respondView(c, http.StatusOK, v, err)
}

// SelectAnswer godoc
// PUT /api/v1/session/questions/:qid/answer
func (h *PracticeHandler) SelectAnswer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	qid, ok := paramID(c, "qid")
	if !ok {
		return
	}

	var req model.SelectAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	v, err := h.practice.SelectAnswer(c.Request.Context(), uid, qid, req.Answer)
	h.respondView(c, http.StatusOK, v, err)
}

// ClearAnswer godoc
// DELETE /api/v1/session/questions/:qid/answer
func (h *PracticeHandler) ClearAnswer(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	qid, ok := paramID(c, "qid")
	if !ok {
		return
	}
	v, err := h.practice.ClearAnswer(c.Request.Context(), uid, qid)
	h.respondView(c, http.StatusOK, v, err)
}

// ToggleMark godoc
// POST /api/v1/session/questions/:qid/mark
func (h *PracticeHandler) ToggleMark(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	qid, ok := paramID(c, "qid")
	if !ok {
		return
	}
	v, err := h.practice.ToggleMark(c.Request.Context(), uid, qid)
	h.respondView(c, http.StatusOK, v, err)
}

// GetSolution godoc
// GET /api/v1/session/questions/:qid/solution
// Browse mode only.
func (h *PracticeHandler) GetSolution(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	qid, ok := paramID(c, "qid")
	if !ok {
		return
	}

	sol, err := h.practice.Solution(c.Request.Context(), uid, qid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"solution": sol})
}

// Submit godoc
// POST /api/v1/session/submit
// Scores and records the session. On failure the session stays open and
// the request can be repeated.
func (h *PracticeHandler) Submit(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	res, err := h.practice.Submit(c.Request.Context(), uid)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": res})
}
