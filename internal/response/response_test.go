package response

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/i18n"
)

var allCodes = []ErrCode{
	ErrInvalidCredentials, ErrEmailTaken, ErrSessionInvalidated, ErrTokenRequired,
	ErrTokenInvalid, ErrTokenExpired, ErrForbidden, ErrAdminAccessOnly, ErrAccessRequired,
	ErrValidation, ErrInvalidID, ErrInvalidPayload, ErrInvalidArgument, ErrInvalidQuestionData,
	ErrNotFound, ErrConflict, ErrNoActiveSession, ErrSessionReadOnly, ErrNoQuestions,
	ErrNotSubmittable, ErrSubmissionInFlight, ErrSubmissionFailed, ErrSolutionUnavailable,
	ErrSessionUnavailable, ErrTimeUp, ErrRateLimitExceeded, ErrInternal,
}

func TestEveryCodeIsTranslated(t *testing.T) {
	if err := i18n.Init("en", zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	for _, lang := range []string{"en", "id"} {
		ctx := i18n.WithLocalizer(context.Background(), i18n.NewLocalizer(lang))
		unknown := GetMessage(ctx, ErrUnknown)
		for _, code := range allCodes {
			if msg := GetMessage(ctx, code); msg == unknown || msg == string(code) {
				t.Errorf("%s: %s has no message", lang, code)
			}
		}
	}
}

func TestEnvelope(t *testing.T) {
	if err := i18n.Init("en", zerolog.Nop()); err != nil {
		t.Fatal(err)
	}
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ok", func(c *gin.Context) {
		SuccessWithPagination(c, http.StatusOK, gin.H{"n": 1}, NewPagination(2, 10, 25))
	})
	r.GET("/fail", func(c *gin.Context) {
		FailWithFields(c, http.StatusBadRequest, ErrValidation, map[string]string{"email": "required"})
	})

	const reqID = "9b2c7d0e-5d7a-4b39-9f3c-0a1b2c3d4e5f"
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Request-ID", reqID)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var ok Response
	if err := json.Unmarshal(w.Body.Bytes(), &ok); err != nil {
		t.Fatal(err)
	}
	if ok.Metadata.RequestID != reqID || w.Header().Get("X-Request-ID") != reqID {
		t.Fatalf("request id not propagated: %+v", ok.Metadata)
	}
	if ok.Pagination == nil || ok.Pagination.TotalPages != 3 || ok.Error != nil {
		t.Fatalf("ok envelope = %+v", ok)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fail", nil))
	var bad Response
	if err := json.Unmarshal(w.Body.Bytes(), &bad); err != nil {
		t.Fatal(err)
	}
	if w.Code != http.StatusBadRequest || bad.Error == nil || bad.Error.Code != ErrValidation || bad.Error.Fields["email"] != "required" {
		t.Fatalf("fail envelope = %d %+v", w.Code, bad.Error)
	}
	if bad.Metadata.RequestID == "" || bad.Metadata.RequestID == reqID {
		t.Fatalf("expected a fresh request id, got %q", bad.Metadata.RequestID)
	}
}
