package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exprep-backend/internal/engine"
	"github.com/stemsi/exprep-backend/internal/middleware"
	"github.com/stemsi/exprep-backend/internal/repository"
	"github.com/stemsi/exprep-backend/internal/response"
	"github.com/stemsi/exprep-backend/internal/service"
)

// errorStatus maps a service error to its HTTP status and API code.
// Unknown errors are internal.
func errorStatus(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return http.StatusNotFound, response.ErrNotFound

	// ─── Practice session ───
	case errors.Is(err, engine.ErrNoSession):
		return http.StatusNotFound, response.ErrNoActiveSession
	case errors.Is(err, engine.ErrReadOnly):
		return http.StatusConflict, response.ErrSessionReadOnly
	case errors.Is(err, engine.ErrNotSubmittable):
		return http.StatusConflict, response.ErrNotSubmittable
	case errors.Is(err, engine.ErrInvalidArgument):
		return http.StatusBadRequest, response.ErrInvalidArgument
	case errors.Is(err, engine.ErrEmptySession), errors.Is(err, service.ErrNoQuestions):
		return http.StatusBadRequest, response.ErrNoQuestions
	case errors.Is(err, service.ErrSubmissionInFlight):
		return http.StatusConflict, response.ErrSubmissionInFlight
	case errors.Is(err, service.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, service.ErrSolutionUnavailable):
		return http.StatusConflict, response.ErrSolutionUnavailable
	case errors.Is(err, service.ErrTimeUp):
		return http.StatusConflict, response.ErrTimeUp
	case errors.Is(err, service.ErrSessionUnavailable), errors.Is(err, service.ErrPracticeClosed):
		return http.StatusServiceUnavailable, response.ErrSessionUnavailable

	// ─── Access ───
	case errors.Is(err, service.ErrAccessRequired):
		return http.StatusForbidden, response.ErrAccessRequired
	case errors.Is(err, service.ErrNotAttemptOwner):
		return http.StatusForbidden, response.ErrForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, response.ErrInvalidCredentials
	case errors.Is(err, service.ErrSessionInvalidated):
		return http.StatusUnauthorized, response.ErrSessionInvalidated

	// ─── Content ───
	case errors.Is(err, service.ErrInvalidQuestionData):
		return http.StatusBadRequest, response.ErrInvalidQuestionData
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, response.ErrEmailTaken
	case errors.Is(err, repository.ErrDuplicateExam), errors.Is(err, repository.ErrDuplicatePaper),
		errors.Is(err, repository.ErrQuestionsInUse):
		return http.StatusConflict, response.ErrConflict

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, response.ErrInternal
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes the mapped error. Server-side failures are attached to the gin
// context so the request logger records them.
func fail(c *gin.Context, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	var qe *service.QuestionError
	if errors.As(err, &qe) {
		response.FailWithFields(c, status, code, map[string]string{
			"questions[" + strconv.Itoa(qe.Index) + "]": qe.Err.Error(),
		})
		return
	}
	response.Fail(c, status, code)
}

// paramID parses a positive integer path parameter, answering 400 otherwise.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}

// userID returns the authenticated user, answering 401 when missing.
func userID(c *gin.Context) (int64, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return 0, false
	}
	return claims.UserID, true
}
