// errors.go - APIError responses for the /api routes
package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every failed /api request. The legacy
// /send-data and /send-text routes answer with {"error": ...} instead.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// StatusCode lets the metrics middleware count the status without importing
// this package.
func (e *APIError) StatusCode() int {
	return e.Status
}

func newAPIError(status int, code, message string, cause error) *APIError {
	err := &APIError{Status: status, Code: code, Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewBadRequestError reports a malformed request such as an unreadable
// multipart form.
func NewBadRequestError(message string, cause error) *APIError {
	return newAPIError(http.StatusBadRequest, "BAD_REQUEST", message, cause)
}

// NewValidationError reports a missing or out-of-range request field.
func NewValidationError(field string) *APIError {
	return newAPIError(http.StatusBadRequest, "VALIDATION_ERROR",
		fmt.Sprintf("validation failed for field: %s", field), nil)
}

func NewNotFoundError(resource string, id string) *APIError {
	return newAPIError(http.StatusNotFound, "NOT_FOUND",
		fmt.Sprintf("%s not found: %s", resource, id), nil)
}

// NewConflictError is returned while the panel is already submitting.
func NewConflictError(message string) *APIError {
	return newAPIError(http.StatusConflict, "CONFLICT", message, nil)
}

// NewUnsupportedMediaTypeError rejects an attachment that is not a PDF.
func NewUnsupportedMediaTypeError(message string) *APIError {
	return newAPIError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", message, nil)
}

// NewPayloadTooLargeError rejects an attachment over the size limit.
func NewPayloadTooLargeError(message string) *APIError {
	return newAPIError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", message, nil)
}

// NewBadGatewayError reports a failed call to the concept map endpoint.
func NewBadGatewayError(message string, cause error) *APIError {
	return newAPIError(http.StatusBadGateway, "BAD_GATEWAY", message, cause)
}

func NewInternalError(message string, cause error) *APIError {
	return newAPIError(http.StatusInternalServerError, "INTERNAL_ERROR", message, cause)
}

// NewServiceUnavailableError is returned by history routes when graph
// history is disabled.
func NewServiceUnavailableError(message string) *APIError {
	return newAPIError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, nil)
}

// ShowErrorDetails includes the cause of unexpected errors in responses.
// The server enables it with development logging.
var ShowErrorDetails = false

// ErrorHandler is installed as the Echo HTTPErrorHandler and writes every
// error as an APIError.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	switch e := err.(type) {
	case *APIError:
		apiErr = e
	case *echo.HTTPError:
		apiErr = newAPIError(e.Code, "HTTP_ERROR", fmt.Sprintf("%v", e.Message), nil)
	default:
		apiErr = newAPIError(http.StatusInternalServerError, "UNKNOWN_ERROR", "An unexpected error occurred", nil)
		if ShowErrorDetails {
			apiErr.Details = err.Error()
		}
	}

	c.JSON(apiErr.Status, apiErr)
}
