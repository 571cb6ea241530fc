// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldErrors is a field-keyed error. It unwraps to its Kind so callers can
// still match it against the sentinels above.
type FieldErrors struct {
	Kind   error
	Fields map[string]string
}

// Invalid builds a validation error for a single field.
func Invalid(field, message string) *FieldErrors {
	return &FieldErrors{Kind: ErrValidation, Fields: map[string]string{field: message}}
}

// Denied builds an authorization error for a single field.
func Denied(field, message string) *FieldErrors {
	return &FieldErrors{Kind: ErrForbidden, Fields: map[string]string{field: message}}
}

// Add records another field message and returns the receiver.
func (e *FieldErrors) Add(field, message string) *FieldErrors {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
	return e
}

func (e *FieldErrors) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	kind := ErrValidation
	if e.Kind != nil {
		kind = e.Kind
	}
	return kind.Error() + ": " + strings.Join(parts, "; ")
}

func (e *FieldErrors) Unwrap() error {
	if e.Kind == nil {
		return ErrValidation
	}
	return e.Kind
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := classify(err)
	var fields *FieldErrors
	if errors.As(err, &fields) && len(fields.Fields) > 0 {
		writeProblem(w, ProblemDetail{Title: title, Status: status, Errors: fields.Fields})
		return
	}
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, title, detail)
}

// StatusOf returns the HTTP status RespondError writes for err.
func StatusOf(err error) int {
	status, _ := classify(err)
	return status
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "Duplicate"
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "Unauthorized"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
