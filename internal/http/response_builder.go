// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for the JSON envelope every
// endpoint answers with:
//
//	{"success": bool, "message": string, "data": ..., "error": string,
//	 "errors": [{"field", "message"}], "pagination": {...}}
//
// Only success and message are always present.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"expenses/internal/core"
)

// Response is the envelope shared by every endpoint.
type Response struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	Data       any               `json:"data,omitempty"`
	Error      string            `json:"error,omitempty"`
	Errors     []core.FieldError `json:"errors,omitempty"`
	Pagination *core.Pagination  `json:"pagination,omitempty"`
}

// ResponseBuilder provides a fluent API for building envelope responses.
type ResponseBuilder struct {
	statusCode int
	body       Response
	headers    map[string]string
}

// Success starts a 200 response carrying data. A nil data is omitted.
func Success(message string, data any) *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		body:       Response{Success: true, Message: message, Data: data},
		headers:    make(map[string]string),
	}
}

// Failure starts an error response with the given status.
func Failure(statusCode int, message string) *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: statusCode,
		body:       Response{Success: false, Message: message},
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Pagination attaches listing metadata.
func (b *ResponseBuilder) Pagination(p core.Pagination) *ResponseBuilder {
	b.body.Pagination = &p
	return b
}

// Detail sets the error field. Callers decide whether the detail may be shown.
func (b *ResponseBuilder) Detail(detail string) *ResponseBuilder {
	b.body.Error = detail
	return b
}

// FieldErrors lists the offending request fields.
func (b *ResponseBuilder) FieldErrors(fields []core.FieldError) *ResponseBuilder {
	b.body.Errors = fields
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// Body returns the envelope as built so far.
func (b *ResponseBuilder) Body() Response {
	return b.body
}

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)

	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		// Headers are gone by now; all that is left is to record it.
		slog.Error("Failed to encode response", "error", err, "status_code", b.statusCode)
	}
}

// ValidationFailed creates the 400 response for invalid input.
func ValidationFailed(fields []core.FieldError) *ResponseBuilder {
	return Failure(http.StatusBadRequest, "Validation failed").FieldErrors(fields)
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return Failure(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return Failure(http.StatusNotFound, message)
}

// TooManyRequestsError creates the 429 response of the rate limiter.
func TooManyRequestsError() *ResponseBuilder {
	return Failure(http.StatusTooManyRequests, "Too many requests, please try again later.")
}

// InternalServerError creates a 500 response. detail is only set when the
// server runs in development.
func InternalServerError(message, detail string) *ResponseBuilder {
	return Failure(http.StatusInternalServerError, message).Detail(detail)
}
