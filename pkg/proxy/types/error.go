package types

import "net/http"

// Error type identifiers returned in the error envelope. They follow the
// OpenAI naming convention so existing client SDKs surface them correctly.
const (
	ErrorTypeInvalidRequest   = "invalid_request_error"
	ErrorTypeAuthentication   = "authentication_error"
	ErrorTypePermissionDenied = "permission_denied"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeServer           = "server_error"
	ErrorTypeBadGateway       = "bad_gateway"
	ErrorTypeGatewayTimeout   = "gateway_timeout"
	ErrorTypeUpstream         = "upstream_error"
)

// Stream error types are carried in-band as SSE error events once response
// headers have been committed and a plain HTTP status is no longer possible.
const (
	StreamErrorTypeUpstream   = "upstream_error"
	StreamErrorTypeTimeout    = "timeout"
	StreamErrorTypeConnection = "connection_error"
)

// ErrorResponse is the JSON envelope for every error the proxy emits,
// both as an HTTP response body and as an in-band SSE error event.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error message and its machine-readable type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// HTTPStatusCode maps the error type to the status code used when the
// envelope is sent as a plain HTTP response.
func (e *ErrorResponse) HTTPStatusCode() int {
	switch e.Error.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermissionDenied:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeBadGateway, ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewInvalidRequestError builds a 400 invalid_request_error envelope.
func NewInvalidRequestError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeInvalidRequest}}
}

// NewAuthenticationError builds a 401 authentication_error envelope.
func NewAuthenticationError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeAuthentication}}
}

// NewPermissionDeniedError builds a 403 permission_denied envelope.
func NewPermissionDeniedError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypePermissionDenied}}
}

// NewNotFoundError builds a 404 not_found envelope.
func NewNotFoundError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeNotFound}}
}

// NewServerError builds a 500 server_error envelope.
func NewServerError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeServer}}
}

// NewBadGatewayError builds a 502 bad_gateway envelope.
func NewBadGatewayError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeBadGateway}}
}

// NewGatewayTimeoutError builds a 504 gateway_timeout envelope.
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeGatewayTimeout}}
}

// NewUpstreamError builds an upstream_error envelope. The caller decides the
// HTTP status when relaying, since the upstream status is passed through.
func NewUpstreamError(message string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: ErrorTypeUpstream}}
}
