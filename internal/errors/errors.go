package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidAmount is returned when an amount is non-numeric or not positive.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrMissingField is returned when required caller input is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInconsistentState is returned when a transition would violate the
	// payment lifecycle, e.g. overwriting a remote payment id.
	ErrInconsistentState = errors.New("inconsistent payment state")
	// ErrInvalidSignature is returned when a gateway notification token does
	// not verify against the shared secret.
	ErrInvalidSignature = errors.New("invalid notification signature")
)

// GatewayErrorKind distinguishes transport failures from explicit rejections.
type GatewayErrorKind int

const (
	// GatewayUnreachable means the call never produced a definitive remote
	// answer: timeout, connection refused, DNS failure.
	GatewayUnreachable GatewayErrorKind = iota
	// GatewayRejected means the gateway answered and refused the request.
	GatewayRejected
)

// GatewayError is a failure reported by, or on the way to, the payment gateway.
type GatewayError struct {
	Kind    GatewayErrorKind
	Message string
	Details string
	Err     error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Kind == GatewayUnreachable && e.Err != nil:
		return fmt.Sprintf("gateway unreachable: %v", e.Err)
	case e.Details != "":
		return fmt.Sprintf("gateway rejected: %s (%s)", e.Message, e.Details)
	default:
		return fmt.Sprintf("gateway rejected: %s", e.Message)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// NewGatewayUnreachable wraps a transport-level failure.
func NewGatewayUnreachable(err error) *GatewayError {
	return &GatewayError{Kind: GatewayUnreachable, Err: err}
}

// NewGatewayRejected wraps an explicit gateway refusal.
func NewGatewayRejected(message, details string) *GatewayError {
	return &GatewayError{Kind: GatewayRejected, Message: message, Details: details}
}

// AsGatewayError returns the GatewayError in err's chain, if any.
func AsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	if ge, ok := AsGatewayError(err); ok {
		if ge.Kind == GatewayUnreachable {
			return NewHTTPError(http.StatusBadGateway, ge.Error(), "GATEWAY_UNREACHABLE")
		}
		httpErr := NewHTTPError(http.StatusBadGateway, ge.Message, "GATEWAY_REJECTED")
		httpErr.Details = ge.Details
		return httpErr
	}

	switch {
	case errors.Is(err, ErrInvalidAmount):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrMissingField):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "MISSING_FIELD")
	case errors.Is(err, ErrPaymentNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "PAYMENT_NOT_FOUND")
	case errors.Is(err, ErrInconsistentState):
		return NewHTTPError(http.StatusConflict, err.Error(), "INCONSISTENT_STATE")
	case errors.Is(err, ErrInvalidSignature):
		return NewHTTPError(http.StatusBadRequest, err.Error(), "INVALID_SIGNATURE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
