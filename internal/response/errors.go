package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorAccessOnly ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam authoring ────────────────────────────────────────────────
	ErrExamNotPublished     ErrCode = "EXAM_NOT_PUBLISHED"
	ErrExamPublished        ErrCode = "EXAM_ALREADY_PUBLISHED"
	ErrNoQuestions          ErrCode = "NO_QUESTIONS"
	ErrInvalidCorrectAnswer ErrCode = "INVALID_CORRECT_ANSWER"
	ErrNotMultipleChoice    ErrCode = "NOT_MULTIPLE_CHOICE"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrSessionEnded      ErrCode = "SESSION_ENDED"
	ErrSessionNotActive  ErrCode = "SESSION_NOT_ACTIVE"
	ErrNotRegistered     ErrCode = "STUDENT_NOT_REGISTERED"
	ErrInvalidEntryToken ErrCode = "INVALID_ENTRY_TOKEN"
	ErrNotEligible       ErrCode = "NOT_ELIGIBLE"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrNoSubmission      ErrCode = "NO_SUBMISSION"
	ErrScoreOutOfRange   ErrCode = "SCORE_OUT_OF_RANGE"

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
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrProctorAccessOnly:
		return "This resource is restricted to proctors."

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
	case ErrConflict:
		return "Resource already exists."

	// ─── Exam authoring ────────────────────────────────────────────────
	case ErrExamNotPublished:
		return "This exam has not been published."
	case ErrExamPublished:
		return "This exam is already published and can no longer be edited."
	case ErrNoQuestions:
		return "This exam has no questions."
	case ErrInvalidCorrectAnswer:
		return "The correct answer must match one of the options."
	case ErrNotMultipleChoice:
		return "Only multiple choice questions have a correct answer."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Exam session not found."
	case ErrSessionEnded:
		return "This exam session has ended."
	case ErrSessionNotActive:
		return "This exam session is not active."
	case ErrNotRegistered:
		return "You are not registered in this exam session."
	case ErrInvalidEntryToken:
		return "Invalid exam entry token."
	case ErrNotEligible:
		return "You are not eligible to take this exam."
	case ErrAlreadySubmitted:
		return "Answers for this exam have already been submitted."
	case ErrNoSubmission:
		return "No submission found for this student."
	case ErrScoreOutOfRange:
		return "Score is outside the allowed range."

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
