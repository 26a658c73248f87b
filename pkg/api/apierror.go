// Package api is the guarded internal HTTP surface of the operator toolkit,
// with RFC 7807 Problem Detail error responses.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brightsignal/opskit/pkg/toolkit"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
// All toolkit API error responses use this format.
type ProblemDetail struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`
	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`
	// Status is the HTTP status code.
	Status int `json:"status"`
	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`
	// Code carries the toolkit error code when the failure originated in
	// the executor (SAFETY_BLOCK, CONCURRENCY_LIMIT, ...).
	Code string `json:"code,omitempty"`
	// Recoverable tells callers whether retrying the same request could
	// plausibly succeed.
	Recoverable bool `json:"recoverable,omitempty"`
	// TraceID links to the request for correlation.
	TraceID string `json:"trace_id,omitempty"`
}

// Error implements the error interface.
func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// WriteError writes an RFC 7807 Problem Detail JSON response.
func WriteError(w http.ResponseWriter, status int, title, detail string) {
	writeProblem(w, &ProblemDetail{
		Type:   fmt.Sprintf("https://brightsignal.io/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeProblem(w http.ResponseWriter, problem *ProblemDetail) {
	if problem.TraceID == "" {
		problem.TraceID = w.Header().Get("X-Request-ID")
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, http.StatusBadRequest, "Bad Request", detail)
}

// WriteUnauthorized writes a 401 error response.
func WriteUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	WriteError(w, http.StatusUnauthorized, "Unauthorized", detail)
}

// WriteForbidden writes a 403 error response.
func WriteForbidden(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Insufficient permissions"
	}
	WriteError(w, http.StatusForbidden, "Forbidden", detail)
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "The requested resource does not exist"
	}
	WriteError(w, http.StatusNotFound, "Not Found", detail)
}

// WriteMethodNotAllowed writes a 405 error response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "The HTTP method is not supported for this endpoint")
}

// WriteTooManyRequests writes a 429 error response with Retry-After header.
func WriteTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	WriteError(w, http.StatusTooManyRequests, "Too Many Requests", "Rate limit exceeded. Retry after the specified interval.")
}

// WriteInternal writes a 500 error response.
// The err parameter is logged but NEVER exposed to the client.
func WriteInternal(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	WriteError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred. Please try again later.")
}

// WriteToolkitError maps an executor failure to the HTTP boundary:
// SAFETY_BLOCK→403, CONCURRENCY_LIMIT→429, VALIDATION→400, everything
// else→500-class with the code preserved in the body.
func WriteToolkitError(w http.ResponseWriter, te *toolkit.Error) {
	status := http.StatusInternalServerError
	switch te.Code {
	case toolkit.CodeSafetyBlock:
		status = http.StatusForbidden
	case toolkit.CodeConcurrencyLimit:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", "5")
	case toolkit.CodeValidation:
		status = http.StatusBadRequest
	case toolkit.CodeInvalidRunID:
		status = http.StatusUnprocessableEntity
	}

	writeProblem(w, &ProblemDetail{
		Type:        fmt.Sprintf("https://brightsignal.io/errors/%s", te.Code),
		Title:       string(te.Code),
		Status:      status,
		Detail:      te.Message,
		Code:        string(te.Code),
		Recoverable: te.Recoverable(),
	})
}
