package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeInvalidToken = "invalid_token"
	ErrCodeForbidden    = "forbidden"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"

	// Resource errors
	ErrCodeNotFound = "not_found"
	ErrCodeConflict = "conflict"

	// Session errors
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeSessionCreateError = "session_create_failed"
	ErrCodeJoinFailed         = "join_failed"
	ErrCodeNotHost            = "not_host"
	ErrCodeBadTransition      = "bad_transition"
	ErrCodeRoundClosed        = "round_closed"
	ErrCodeStaleRound         = "stale_round"
	ErrCodeAlreadyAnswered    = "already_answered"
	ErrCodeSubmitFailed       = "submit_failed"

	// Buzzer errors
	ErrCodeBuzzTaken      = "buzz_taken"
	ErrCodeBuzzLocked     = "buzz_locked"
	ErrCodeBuzzMismatch   = "buzz_mismatch"
	ErrCodeNotBuzzerRound = "not_buzzer_round"
	ErrCodeBuzzerRound    = "buzzer_round"

	// Quiz errors
	ErrCodeQuizNotFound     = "quiz_not_found"
	ErrCodeQuizSaveFailed   = "quiz_save_failed"
	ErrCodeQuizDeleteFailed = "quiz_delete_failed"

	// Stats errors
	ErrCodeStatsFetchFailed = "stats_fetch_failed"

	// WebSocket errors
	ErrCodeInvalidPayload     = "invalid_payload"
	ErrCodeUnknownMessageType = "unknown_message_type"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
