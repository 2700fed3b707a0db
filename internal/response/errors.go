package response

import (
	"context"

	"github.com/stemsi/exprep-backend/internal/i18n"
)

// ErrCode is a typed error code enum for consistent API error identification.
// Each code is also the message id of its localized text.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrEmailTaken         ErrCode = "EMAIL_TAKEN"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden       ErrCode = "FORBIDDEN"
	ErrAdminAccessOnly ErrCode = "ADMIN_ACCESS_ONLY"
	ErrAccessRequired  ErrCode = "ACCESS_REQUIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation          ErrCode = "VALIDATION_ERROR"
	ErrInvalidID           ErrCode = "INVALID_ID"
	ErrInvalidPayload      ErrCode = "INVALID_PAYLOAD"
	ErrInvalidArgument     ErrCode = "INVALID_ARGUMENT"
	ErrInvalidQuestionData ErrCode = "INVALID_QUESTION_DATA"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Practice session ──────────────────────────────────────────────
	ErrNoActiveSession     ErrCode = "NO_ACTIVE_SESSION"
	ErrSessionReadOnly     ErrCode = "SESSION_READ_ONLY"
	ErrNoQuestions         ErrCode = "NO_QUESTIONS"
	ErrNotSubmittable      ErrCode = "NOT_SUBMITTABLE"
	ErrSubmissionInFlight  ErrCode = "SUBMISSION_IN_FLIGHT"
	ErrSubmissionFailed    ErrCode = "SUBMISSION_FAILED"
	ErrSolutionUnavailable ErrCode = "SOLUTION_UNAVAILABLE"
	ErrSessionUnavailable  ErrCode = "SESSION_UNAVAILABLE"
	ErrTimeUp              ErrCode = "TIME_UP"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
	ErrUnknown  ErrCode = "UNKNOWN_ERROR"
)

// GetMessage returns the localized message for a code, using the localizer
// carried by ctx.
func GetMessage(ctx context.Context, code ErrCode) string {
	msg := i18n.T(ctx, string(code))
	if msg == string(code) {
		return i18n.T(ctx, string(ErrUnknown))
	}
	return msg
}
