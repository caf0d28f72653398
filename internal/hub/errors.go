package hub

import (
	"fmt"
)

// Error represents hub operation error.
type Error struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Here we define well-known errors returned from hub operations. Callers match
// them with errors.Is, transient failures are wrapped into ErrorInternal.
var (
	// ErrorInternal means server error, if returned this is a signal
	// that something went wrong with server itself and client most probably
	// not guilty.
	ErrorInternal = &Error{
		Code:    100,
		Message: "internal server error",
	}
	// ErrorUnknownChannel means that namespace in channel name does not exist.
	ErrorUnknownChannel = &Error{
		Code:    102,
		Message: "unknown channel",
	}
	// ErrorPermissionDenied means that access to resource not allowed.
	ErrorPermissionDenied = &Error{
		Code:    103,
		Message: "permission denied",
	}
	// ErrorLimitExceeded says that some sort of limit exceeded, server logs should
	// give more detailed information.
	ErrorLimitExceeded = &Error{
		Code:    106,
		Message: "limit exceeded",
	}
	// ErrorBadRequest says that server can not process received
	// data because it is malformed.
	ErrorBadRequest = &Error{
		Code:    107,
		Message: "bad request",
	}
	// ErrorNotAvailable returned when hub is shutting down.
	ErrorNotAvailable = &Error{
		Code:    108,
		Message: "not available",
	}
	// ErrorInvalidToken returned for malformed, badly signed and expired tokens.
	ErrorInvalidToken = &Error{
		Code:    109,
		Message: "invalid token",
	}
	// ErrorConnectionClosed returned for operations on disconnected client.
	ErrorConnectionClosed = &Error{
		Code:    111,
		Message: "connection closed",
	}
)

func internalError(err error) error {
	return fmt.Errorf("%w: %v", ErrorInternal, err)
}
