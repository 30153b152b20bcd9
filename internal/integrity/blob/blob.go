// Package blob stores raw document content. Backends: in-memory, local
// filesystem and Google Cloud Storage.
package blob

import (
	"context"
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrNotFound is returned when no blob exists at the path.
var ErrNotFound = errors.New("blob: not found")

// ErrInvalidPath is returned for empty or escaping paths.
var ErrInvalidPath = errors.New("blob: invalid path")

// Store is the full blob contract used by the document service.
type Store interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

var opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tradeledger_blob_operations_total",
	Help: "Blob store operations by backend, operation and result",
}, []string{"backend", "op", "result"})

func observe(backend, op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	opsTotal.WithLabelValues(backend, op, result).Inc()
}

// cleanPath rejects absolute and parent-relative paths.
func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" || strings.HasPrefix(path, "/") {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." || part == "" {
			return "", ErrInvalidPath
		}
	}
	return path, nil
}
