// Package httputil holds the JSON response helpers shared by every handler.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "unitedhelp/pkg/domain-errors"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes body as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a domain error to its HTTP status and writes the error envelope.
// Internal failures never leak their message to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)
	resp := errorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, status, resp)
}

// StatusFor translates an error code into an HTTP status.
// Conflict is reported as 400, the lifecycle API has no 409 responses.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeValidation, dErrors.CodeConflict:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON reads a JSON request body into dst. An empty body leaves dst untouched.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid JSON body")
	}
	return nil
}

// LogError records a failed request at a level matching its severity.
func LogError(r *http.Request, logger *slog.Logger, msg string, err error) {
	if logger == nil {
		return
	}
	ctx := r.Context()
	if StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, "error", err, "path", r.URL.Path)
		return
	}
	logger.WarnContext(ctx, msg, "error", err, "path", r.URL.Path)
}

// Preparable is a request payload that can normalize and validate itself.
type Preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes the body into a T, normalizes it and validates it.
// On failure it writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req := PT(new(T))
	if err := DecodeJSON(r, req); err != nil {
		LogError(r, logger, "invalid request body", err)
		WriteError(w, err)
		return nil, false
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		LogError(r, logger, "invalid request", err)
		WriteError(w, err)
		return nil, false
	}
	return (*T)(req), true
}
