package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/diewo77/stockroom/internal/apperr"
	"github.com/diewo77/stockroom/validation"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error   apperr.Code `json:"error"`
	Message string      `json:"message"`
	Details any         `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	var body []byte
	var err error
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			// avoid writing partial JSON
			http.Error(w, `{"error":"INTERNAL","message":"encode error"}`, http.StatusInternalServerError)
			return
		}
	} else {
		body = []byte("null")
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as a classified JSON failure. Unclassified and INTERNAL
// errors are logged with their cause and answered with a generic message.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var v validation.Violations
	if errors.As(err, &v) {
		Invalid(w, v)
		return
	}
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		slog.Error("request failed", "m", r.Method, "path", r.URL.Path, "err", err)
	}
	JSON(w, apperr.HTTPStatus(code), ErrorResponse{Error: code, Message: apperr.MessageOf(err)})
}

// Invalid answers 400 with per-field violations.
func Invalid(w http.ResponseWriter, details any) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   apperr.CodeBadRequest,
		Message: "validation failed",
		Details: details,
	})
}

// Decode reads a JSON body into v. Malformed bodies are BAD_REQUEST.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeBadRequest, "malformed JSON body", err)
	}
	return nil
}
