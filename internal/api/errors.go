package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

// APIError implements huma.StatusError. It carries the domain error code to
// the response envelope.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler makes huma render domain errors with their own status
// and code. Call it before registering routes.
func RegisterErrorHandler() {
	huma.NewError = newAPIError
}

func newAPIError(status int, message string, errs ...error) huma.StatusError {
	details := map[string]string{}
	for _, err := range errs {
		if err == nil {
			continue
		}

		var domainErr *domerrors.Error
		if errors.As(err, &domainErr) {
			return &APIError{
				status:  domainErr.HTTPStatus(),
				Code:    string(domainErr.Code),
				Message: domainErr.Message,
				Details: domainErr.Details,
			}
		}

		var storeErr *store.Error
		if errors.As(err, &storeErr) {
			return fromStoreError(storeErr)
		}

		var detailer huma.ErrorDetailer
		if errors.As(err, &detailer) {
			d := detailer.ErrorDetail()
			details[d.Location] = d.Message
		}
	}

	// huma reports malformed input as 422; it is a validation failure here.
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	out := &APIError{
		status:  status,
		Code:    statusToCode(status),
		Message: message,
	}
	if len(details) > 0 {
		out.Details = details
	}
	return out
}

func fromStoreError(err *store.Error) *APIError {
	code := statusToCode(err.HTTPCode())
	if errors.Is(err, store.ErrUnavailable) {
		code = string(domerrors.CodeStoreUnavailable)
	}
	return &APIError{
		status:  err.HTTPCode(),
		Code:    code,
		Message: err.Message,
	}
}

func statusToCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(domerrors.CodeValidation)
	case http.StatusNotFound:
		return string(domerrors.CodeNotFound)
	case http.StatusConflict:
		return string(domerrors.CodeConflict)
	case http.StatusTooManyRequests:
		return string(domerrors.CodeRateLimited)
	case http.StatusServiceUnavailable:
		return string(domerrors.CodeStoreUnavailable)
	default:
		return string(domerrors.CodeInternal)
	}
}
