// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses so every handler
// writes status, headers and body the same way.

package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devintruefi/91825truefi-sub000/internal/onboarding"
	"github.com/devintruefi/91825truefi-sub000/internal/services"
)

// Error codes returned in the "error" field of failure bodies.
const (
	CodeOutOfSync   = "OUT_OF_SYNC"
	CodeInvalid     = "INVALID_TRANSITION"
	CodeBadRequest  = "BAD_REQUEST"
	CodeConflict    = "CONFLICT"
	CodeNotFound    = "NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
	CodeUnavailable = "UNAVAILABLE"
	CodeInternal    = "INTERNAL"
)

// ErrorBody is the generic failure payload.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// OutOfSyncBody tells the client to re-fetch state instead of retrying.
type OutOfSyncBody struct {
	Error          string            `json:"error"`
	ExpectedStepID onboarding.StepID `json:"expectedStepId"`
	ReceivedStepID onboarding.StepID `json:"receivedStepId"`
	Reason         string            `json:"reason"`
}

// TransitionBody carries the refused transition and the state the client
// should render next, with a freshly issued instance.
type TransitionBody struct {
	Error  string         `json:"error"`
	Code   string         `json:"code"`
	Kind   string         `json:"kind"`
	Reason string         `json:"reason"`
	State  *services.View `json:"state,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// RetryAfter sets the Retry-After header in seconds.
func (b *JSONResponseBuilder) RetryAfter(seconds int) *JSONResponseBuilder {
	return b.Header("Retry-After", strconv.Itoa(seconds))
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"` + CodeInternal + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: code, Message: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, CodeBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, CodeNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response. The
// cause is logged by the caller and never echoed to the client.
func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, CodeInternal, "")
}

// ConflictError creates a 409 for a lost optimistic-concurrency race. The
// request may be retried after re-reading state.
func ConflictError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, CodeConflict, "state changed concurrently; retry").
		RetryAfter(1)
}

// OutOfSyncError creates the 409 resync response.
func OutOfSyncError(se *onboarding.SyncError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusConflict).
		Body(OutOfSyncBody{
			Error:          CodeOutOfSync,
			ExpectedStepID: se.ExpectedStepID,
			ReceivedStepID: se.ReceivedStepID,
			Reason:         se.Reason,
		})
}

// TransitionError creates the 422 response for a refused transition.
func TransitionError(te *onboarding.TransitionError, view *services.View) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(TransitionBody{
			Error:  te.Reason,
			Code:   CodeInvalid,
			Kind:   string(te.Kind),
			Reason: te.Reason,
			State:  view,
		})
}
