package wire

import "net/http"

// Code is a machine-readable error kind shared by the HTTP surface and the
// websocket error frames.
type Code string

const (
	CodeUnauthorized            Code = "unauthorized"
	CodeForbidden               Code = "forbidden"
	CodeInvalidRequest          Code = "invalid_request"
	CodeInvalidParticipants     Code = "invalid_participants"
	CodeUnsupportedActivity     Code = "unsupported_activity"
	CodeSessionNotFound         Code = "session_not_found"
	CodeSessionStateMissing     Code = "session_state_missing"
	CodeSessionNotInLobby       Code = "session_not_in_lobby"
	CodeSessionNotRunning       Code = "session_not_running"
	CodeRoundNotStarted         Code = "round_not_started"
	CodeRoundNotFound           Code = "round_not_found"
	CodeParticipantNotInSession Code = "participant_not_in_session"
	CodeRateLimitExceeded       Code = "rate_limit_exceeded"
	CodeNotJoined               Code = "not_joined"
	CodeInternal                Code = "internal_error"

	// CodeBadFormat is stream-only: it answers frames that fail to parse.
	CodeBadFormat Code = "bad_format"
)

// Error carries a taxonomy code plus optional human-readable details.
type Error struct {
	Code    Code   `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Details == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Details
}

// NewError builds a taxonomy error with optional details.
func NewError(code Code, details string) *Error {
	return &Error{Code: code, Details: details}
}

// HTTPStatus maps a taxonomy code to its HTTP status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotJoined:
		return http.StatusForbidden
	case CodeInvalidRequest, CodeInvalidParticipants, CodeUnsupportedActivity, CodeBadFormat:
		return http.StatusBadRequest
	case CodeSessionNotFound, CodeRoundNotFound:
		return http.StatusNotFound
	case CodeSessionStateMissing:
		return http.StatusGone
	case CodeSessionNotInLobby, CodeSessionNotRunning, CodeRoundNotStarted, CodeParticipantNotInSession:
		return http.StatusConflict
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
