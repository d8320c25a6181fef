package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Engine error codes.  The first group realizes the failure taxonomy shared
// by the orchestrators and the panel coordinator; the second covers the
// infrastructure underneath them.
const (
	// CodeValidation marks bad or incomplete user input.  Recovered locally
	// by disabling the offending action and showing inline guidance.
	CodeValidation ErrorCode = "ERR_VALIDATION"

	// CodeNetwork marks an unreachable boundary.  Recovered by falling back
	// to synthesized placeholder data plus a surfaced notification.
	CodeNetwork ErrorCode = "ERR_NETWORK"

	// CodeTimeout marks a bounded boundary call that expired.
	CodeTimeout ErrorCode = "ERR_TIMEOUT"

	// CodeAPI marks a reachable boundary that returned an error payload or a
	// malformed shape.  Surfaced as a notification; never silently accepted.
	CodeAPI ErrorCode = "ERR_API"

	// CodeState marks an internal invariant violation (e.g. a panel key
	// collision).  Fatal to the operation, never to unrelated state.
	CodeState ErrorCode = "ERR_STATE"

	CodeInternal      ErrorCode = "ERR_INTERNAL"
	CodeNotFound      ErrorCode = "ERR_NOT_FOUND"
	CodeConflict      ErrorCode = "ERR_CONFLICT"
	CodeCache         ErrorCode = "ERR_CACHE"
	CodeSerialization ErrorCode = "ERR_SERIALIZATION"
	CodeUnknown       ErrorCode = "ERR_UNKNOWN"
	CodeOK            ErrorCode = "OK"
)

// errorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the API layer.
var errorCodeHTTPStatus = map[ErrorCode]int{
	CodeValidation:    http.StatusUnprocessableEntity,
	CodeNetwork:       http.StatusBadGateway,
	CodeTimeout:       http.StatusGatewayTimeout,
	CodeAPI:           http.StatusBadGateway,
	CodeState:         http.StatusConflict,
	CodeInternal:      http.StatusInternalServerError,
	CodeNotFound:      http.StatusNotFound,
	CodeConflict:      http.StatusConflict,
	CodeCache:         http.StatusInternalServerError,
	CodeSerialization: http.StatusInternalServerError,
	CodeUnknown:       http.StatusInternalServerError,
	CodeOK:            http.StatusOK,
}

// errorCodeMessage maps ErrorCodes to default user-safe messages.
var errorCodeMessage = map[ErrorCode]string{
	CodeValidation:    "validation failed",
	CodeNetwork:       "service unreachable",
	CodeTimeout:       "request timed out",
	CodeAPI:           "unexpected service response",
	CodeState:         "operation aborted",
	CodeInternal:      "internal error",
	CodeNotFound:      "resource not found",
	CodeConflict:      "resource conflict",
	CodeCache:         "cache error",
	CodeSerialization: "serialization failed",
	CodeUnknown:       "unknown error",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default user-safe message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := errorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether the ErrorCode corresponds to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether the ErrorCode corresponds to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}
