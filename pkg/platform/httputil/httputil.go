// Package httputil holds the JSON response and request helpers shared by
// every HTTP handler.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "tradeledger/pkg/domain-errors"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validatable is implemented by request DTOs that normalise and parse
// themselves after decoding.
type Validatable interface {
	Validate() error
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and error body. Internal failures never
// leak their message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.HTTPStatus(code)
	msg := dErrors.MessageOf(err)
	if status >= http.StatusInternalServerError {
		msg = "internal error"
	}
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: string(code)})
}

// DecodeAndPrepare decodes a JSON body into T, runs struct-tag validation and
// then T's own Validate when it has one. On failure the error response is
// already written and ok is false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	return DecodeAndPrepareLimit[T](w, r, logger, ctx, requestID, maxBodyBytes)
}

// DecodeAndPrepareLimit is DecodeAndPrepare with a caller-chosen body limit.
func DecodeAndPrepareLimit[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string, limit int64) (*T, bool) {
	req := new(T)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid json body"))
		return nil, false
	}

	if err := validate.StructCtx(ctx, req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			WriteError(w, dErrors.New(dErrors.CodeValidation, describe(verrs)))
			return nil, false
		}
	}

	if v, ok := any(req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
			WriteError(w, err)
			return nil, false
		}
	}
	return req, true
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "max":
			parts = append(parts, field+" must be at most "+fe.Param()+" characters")
		case "oneof":
			parts = append(parts, field+" must be one of "+fe.Param())
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
