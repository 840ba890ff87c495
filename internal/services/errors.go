package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/posterctl/internal/models"
	"github.com/desertthunder/posterctl/internal/shared"
)

// ErrorKind classifies an [APIError].
type ErrorKind int

const (
	// KindApplication is an HTTP response with a non-2xx status.
	KindApplication ErrorKind = iota
	// KindTransport means no HTTP response was received.
	KindTransport
	// KindRequest means the request could not be built on the client side.
	KindRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindTransport:
		return "transport"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

const (
	msgNetworkError    = "Network Error - Unable to reach the server. Please check your internet connection."
	msgUnexpectedError = "An unexpected error occurred"
	msgGenericError    = "An error occurred"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:          "Bad Request - Invalid parameters",
	http.StatusNotFound:            "Not Found - Resource doesn't exist",
	http.StatusInternalServerError: "Internal Server Error",
}

var hints = []struct {
	substr string
	hint   string
}{
	{"Job not found", "Check that the job id is valid and has not expired"},
	{"Job not completed yet", `Wait for the job status to be "completed" before fetching results`},
	{"Invalid language", `Use only "en" (English) or "ar" (Arabic)`},
	{"Audio file too large", "Maximum audio file size is 25MB"},
	{"Invalid poster", "Check the poster settings against the supported presets"},
}

// APIError is returned by every [JobService] call that fails.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Response   *models.ErrorResponse
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Unwrap exposes the matching shared sentinel and the underlying cause, if any.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 3)
	switch e.Kind {
	case KindTransport:
		errs = append(errs, shared.ErrServiceUnavailable)
	case KindRequest:
		errs = append(errs, shared.ErrInvalidInput)
	default:
		errs = append(errs, shared.ErrAPIRequest)
		switch {
		case strings.Contains(e.Message, "Job not found"):
			errs = append(errs, shared.ErrJobNotFound)
		case strings.Contains(e.Message, "Job not completed yet"):
			errs = append(errs, shared.ErrJobNotCompleted)
		}
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Hint returns extra guidance for well-known server messages, or "".
func (e *APIError) Hint() string {
	for _, h := range hints {
		if strings.Contains(e.Message, h.substr) {
			return h.hint
		}
	}
	return ""
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindApplication:
		return e.StatusCode >= 500
	}
	return false
}

func newApplicationError(status int, body []byte) *APIError {
	apiErr := &APIError{Kind: KindApplication, StatusCode: status}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		if _, ok := fields["error"]; ok {
			var resp models.ErrorResponse
			_ = json.Unmarshal(body, &resp)
			apiErr.Response = &resp
			apiErr.Message = resp.Error
			if apiErr.Message == "" {
				apiErr.Message = defaultMessage(status, msgGenericError)
			}
			return apiErr
		}
	}

	apiErr.Message = defaultMessage(status, msgUnexpectedError)
	return apiErr
}

func defaultMessage(status int, fallback string) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	return fallback
}

func newTransportError(err error) *APIError {
	return &APIError{Kind: KindTransport, Message: msgNetworkError, Err: err}
}

func newRequestError(err error) *APIError {
	msg := msgUnexpectedError
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &APIError{Kind: KindRequest, Message: msg, Err: err}
}

// AsAPIError extracts an [APIError] from err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsTransport reports whether err means the server could not be reached.
func IsTransport(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Kind == KindTransport
}
