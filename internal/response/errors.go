package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrRefreshInvalid     ErrCode = "REFRESH_TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrNotEnrolled        ErrCode = "NOT_ENROLLED"
	ErrQuizNotPublished   ErrCode = "QUIZ_NOT_PUBLISHED"
	ErrQuizNotAvailable   ErrCode = "QUIZ_NOT_AVAILABLE"
	ErrAttemptsExhausted  ErrCode = "ATTEMPTS_EXHAUSTED"
	ErrAttemptSubmitted   ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrAttemptNotFinished ErrCode = "ATTEMPT_NOT_FINISHED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrSessionInvalidated:
		return "Your session has ended. Please log in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is not valid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrRefreshInvalid:
		return "The refresh token is not valid or has expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is not valid."
	case ErrInvalidPayload:
		return "The request payload is not valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrNotEnrolled:
		return "You are not enrolled in this class."
	case ErrQuizNotPublished:
		return "This quiz has not been published."
	case ErrQuizNotAvailable:
		return "This quiz is not currently available."
	case ErrAttemptsExhausted:
		return "You have used all attempts for this quiz."
	case ErrAttemptSubmitted:
		return "This attempt has already been submitted."
	case ErrAttemptNotFinished:
		return "This attempt has not been submitted yet."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
