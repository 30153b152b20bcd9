// Package integrity computes and checks SHA-256 content hashes of trade
// documents and reads their stored bytes through a BlobStore.
package integrity

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	dErrors "tradeledger/pkg/domain-errors"
)

var tracer = otel.Tracer("tradeledger/integrity")

// BlobStore reads stored document bytes by path.
type BlobStore interface {
	Read(ctx context.Context, path string) ([]byte, error)
}

// Result is the outcome of comparing stored content with its recorded hash.
// A mismatch is a normal result, not an error.
type Result struct {
	Verified       bool
	StoredHash     string
	RecomputedHash string
}

// Compute returns the lowercase hex SHA-256 digest of b.
func Compute(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether b hashes to storedHash. Hex case is ignored.
func Verify(storedHash string, b []byte) bool {
	return equalHex(storedHash, Compute(b))
}

// VerifyBlob recomputes the hash of the blob at path. A read failure is
// returned as a storage error and never reported as a mismatch.
func VerifyBlob(ctx context.Context, blobs BlobStore, storedHash, path string) (Result, error) {
	ctx, span := tracer.Start(ctx, "integrity.VerifyBlob")
	defer span.End()
	span.SetAttributes(attribute.String("blob.path", path))

	content, err := blobs.Read(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "blob read failed")
		return Result{}, dErrors.Wrap(err, dErrors.CodeStorage, "failed to read document content")
	}

	recomputed := Compute(content)
	res := Result{
		Verified:       equalHex(storedHash, recomputed),
		StoredHash:     strings.ToLower(storedHash),
		RecomputedHash: recomputed,
	}
	span.SetAttributes(attribute.Bool("integrity.verified", res.Verified))
	return res, nil
}

func equalHex(a, b string) bool {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
