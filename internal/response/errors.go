package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden     ErrCode = "FORBIDDEN"
	ErrCandidateOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrEmployerOnly  ErrCode = "EMPLOYER_ACCESS_ONLY"
	ErrNotTestOwner  ErrCode = "NOT_TEST_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrTestNotFound    ErrCode = "TEST_NOT_FOUND"
	ErrResultNotFound  ErrCode = "RESULT_NOT_FOUND"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrResultAlreadyDeclared ErrCode = "RESULT_ALREADY_DECLARED"
	ErrDeclarationIncomplete ErrCode = "DECLARATION_INCOMPLETE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."
	case ErrTokenExpired:
		return "Authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrCandidateOnly:
		return "This resource is restricted to candidates."
	case ErrEmployerOnly:
		return "This resource is restricted to employers."
	case ErrNotTestOwner:
		return "You do not own this test."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrSessionNotFound:
		return "Session not found."
	case ErrTestNotFound:
		return "Test not found."
	case ErrResultNotFound:
		return "Result not found."

	// ─── Assessment-specific ───────────────────────────────────────────
	case ErrResultAlreadyDeclared:
		return "Results for this submission have already been declared."
	case ErrDeclarationIncomplete:
		return "Declaration stopped before every result was declared. Partial counts are included."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
