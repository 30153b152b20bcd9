package httputil

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tradeledger/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body.Code)
		assert.Equal(t, "internal error", body.Error)
	})

	t.Run("storage error is masked", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeStorage, "bucket gone"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "storage_error", body.Code)
		assert.NotContains(t, body.Error, "bucket")
	})

	t.Run("bad request includes message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "bad_request", body.Code)
		assert.Equal(t, "invalid input", body.Error)
	})

	t.Run("plain error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, io.ErrUnexpectedEOF)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

type sampleRequest struct {
	Name string `json:"name" validate:"required,max=8"`
}

func (r *sampleRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "reserved" {
		return dErrors.New(dErrors.CodeValidation, "name is reserved")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	decode := func(body string) (*sampleRequest, *httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req, ok := DecodeAndPrepare[sampleRequest](w, r, logger, context.Background(), "req-1")
		return req, w, ok
	}

	t.Run("valid body", func(t *testing.T) {
		req, _, ok := decode(`{"name":" acme "}`)
		require.True(t, ok)
		assert.Equal(t, "acme", req.Name)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, w, ok := decode(`{`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		_, w, ok := decode(`{"name":"a","extra":1}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("tag validation", func(t *testing.T) {
		_, w, ok := decode(`{"name":""}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "name is required")
	})

	t.Run("custom validation", func(t *testing.T) {
		_, w, ok := decode(`{"name":"reserved"}`)
		assert.False(t, ok)
		assert.Contains(t, w.Body.String(), "name is reserved")
	})
}
