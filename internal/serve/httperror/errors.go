package httperror

import (
	"context"
	"net/http"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/starkescrow/starkescrow/internal/apptracker"
)

type ErrorResponse struct {
	Status int                    `json:"-"`
	Error  string                 `json:"error"`
	Extras map[string]interface{} `json:"extras,omitempty"`
}

func (e ErrorResponse) Render(w http.ResponseWriter) {
	httpjson.RenderStatus(w, e.Status, e, httpjson.JSON)
}

type ErrorHandler struct {
	Error ErrorResponse
}

func (h ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Error.Render(w)
}

var NotFound = ErrorResponse{
	Status: http.StatusNotFound,
	Error:  "The resource at the url requested was not found.",
}

var MethodNotAllowed = ErrorResponse{
	Status: http.StatusMethodNotAllowed,
	Error:  "The method is not allowed for resource at the url requested.",
}

func BadRequest(message string, extras map[string]interface{}) *ErrorResponse {
	if message == "" {
		message = "Invalid request"
	}

	return &ErrorResponse{
		Status: http.StatusBadRequest,
		Error:  message,
		Extras: extras,
	}
}

func Unauthorized(message string, extras map[string]interface{}) *ErrorResponse {
	if message == "" {
		message = "Not authorized."
	}

	return &ErrorResponse{
		Status: http.StatusUnauthorized,
		Error:  message,
		Extras: extras,
	}
}

func Forbidden(message string, extras map[string]interface{}) *ErrorResponse {
	if message == "" {
		message = "The connected account is not allowed to perform this operation."
	}

	return &ErrorResponse{
		Status: http.StatusForbidden,
		Error:  message,
		Extras: extras,
	}
}

func NotFoundError(message string, extras map[string]interface{}) *ErrorResponse {
	if message == "" {
		return &NotFound
	}

	return &ErrorResponse{
		Status: http.StatusNotFound,
		Error:  message,
		Extras: extras,
	}
}

// Conflict reports a request that clashes with the current state of an attempt or escrow.
func Conflict(message string, extras map[string]interface{}) *ErrorResponse {
	return &ErrorResponse{
		Status: http.StatusConflict,
		Error:  message,
		Extras: extras,
	}
}

var TooManyRequests = ErrorResponse{
	Status: http.StatusTooManyRequests,
	Error:  "Too many requests, slow down.",
}

func ServiceUnavailable(message string) *ErrorResponse {
	if message == "" {
		message = "The service is temporarily unavailable."
	}

	return &ErrorResponse{
		Status: http.StatusServiceUnavailable,
		Error:  message,
	}
}

func InternalServerError(ctx context.Context, message string, err error, extras map[string]interface{}, appTracker apptracker.AppTracker) *ErrorResponse {
	log.Ctx(ctx).Error(err)
	if appTracker != nil {
		appTracker.CaptureException(err)
	} else {
		log.Warn("App Tracker is nil")
	}

	return &ErrorResponse{
		Status: http.StatusInternalServerError,
		Error:  "An error occurred while processing this request.",
		Extras: extras,
	}
}
