package submission

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/concept-map/backend/internal/upload"
)

var (
	// ErrEmptyText is returned when submit is attempted without text.
	ErrEmptyText = errors.New("text is required")
	// ErrBusy is returned while another submission is outstanding.
	ErrBusy = errors.New("submission already in progress")
	// ErrMalformedResponse is returned when a successful HTTP response does
	// not carry both a true success flag and a graph.
	ErrMalformedResponse = errors.New("unexpected response format")
)

// StatusError reports a non-2xx response from the endpoint.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with status %s", e.statusLine())
}

func (e *StatusError) statusLine() string {
	if e.Status != "" {
		return e.Status
	}
	return strings.TrimSpace(fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code)))
}

// TransportError wraps a failure to complete the HTTP exchange.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage maps a submission error to the text shown to the user.
func UserMessage(err error, rules upload.Rules) string {
	var statusErr *StatusError
	var transportErr *TransportError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyText):
		return "Please enter text"
	case errors.Is(err, ErrBusy):
		return "A submission is already in progress"
	case errors.Is(err, upload.ErrUnsupportedType):
		return "Only PDF files are allowed"
	case errors.Is(err, upload.ErrFileTooLarge):
		return fmt.Sprintf("File size must be %s or less", formatSize(rules.MaxSize))
	case errors.As(err, &statusErr):
		return "Request failed: " + statusErr.statusLine()
	case errors.Is(err, ErrMalformedResponse):
		return "Unexpected response format from server"
	case errors.As(err, &transportErr):
		return "Could not reach the server, please try again"
	default:
		return "Something went wrong, please try again"
	}
}

func formatSize(n int64) string {
	const mib = 1024 * 1024
	const kib = 1024
	switch {
	case n >= mib && n%mib == 0:
		return fmt.Sprintf("%dMB", n/mib)
	case n >= kib && n%kib == 0:
		return fmt.Sprintf("%dKB", n/kib)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
