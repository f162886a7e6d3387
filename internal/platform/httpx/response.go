// Package httpx holds the JSON envelope, error translation and body decoding shared by the HTTP handlers.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jfkeci/job-board-sub000/internal/i18n"
	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	"github.com/jfkeci/job-board-sub000/internal/platform/reqctx"
)

const serviceName = "jobboard-auth"

var translator = i18n.NewTranslator()

// ErrorBody is the error envelope. Fields is only set for VALIDATION_FAILED.
type ErrorBody struct {
	Status  string            `json:"status"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Logger returns the HTTP adapter logger.
func Logger() *slog.Logger {
	return slog.Default().With(
		"service", serviceName,
		"module", "http",
		"layer", "adapter",
	)
}

func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteSuccess(w http.ResponseWriter, statusCode int, data any) {
	WriteJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, map[string]any{
		"status":  "success",
		"message": message,
	})
}

// WriteCode writes an error envelope for a code that has no domain error, e.g. router 404s.
func WriteCode(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	WriteJSON(w, statusCode, ErrorBody{
		Status:  "error",
		Code:    code,
		Message: translator.Translate(r.Header.Get("Accept-Language"), code, message),
	})
}

// WriteError translates err into its stable code and status, logs it under operation and
// writes the envelope. Internal causes are logged but never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	de := domain.AsError(err)
	status := de.Kind.HTTPStatus()
	logOperationError(r.Context(), operation, status, string(de.Kind), err)
	WriteJSON(w, status, ErrorBody{
		Status:  "error",
		Code:    string(de.Kind),
		Message: translator.Translate(r.Header.Get("Accept-Language"), string(de.Kind), de.Message),
		Fields:  de.Fields,
	})
}

// MaxBodyBytes caps a request body read by DecodeBody.
const MaxBodyBytes = 1 << 20

// DecodeBody decodes exactly one JSON value into dst, rejecting unknown fields and bodies
// larger than MaxBodyBytes.
func DecodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if tooLarge(err) {
			return bodyError(err)
		}
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func bodyError(err error) error {
	if tooLarge(err) {
		return fmt.Errorf("request body must not exceed %d bytes", MaxBodyBytes)
	}
	return err
}

// BadBody is the VALIDATION_FAILED error for a body DecodeBody rejected.
func BadBody(err error) *domain.Error {
	return domain.Validation(map[string]string{"body": err.Error()})
}

// ParseIntDefault parses raw, returning fallback when it is empty or not a number.
func ParseIntDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func logOperationError(ctx context.Context, operation string, statusCode int, code string, err error) {
	fields := []any{
		"operation", operation,
		"outcome", "failure",
		"status_code", statusCode,
		"error_code", code,
		"request_id", reqctx.RequestID(ctx),
	}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	if statusCode >= 500 {
		Logger().ErrorContext(ctx, "http operation failed", fields...)
		return
	}
	Logger().WarnContext(ctx, "http operation failed", fields...)
}
