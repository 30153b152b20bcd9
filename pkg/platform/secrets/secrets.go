// Package secrets generates and verifies operator secrets such as the admin
// token. Only bcrypt hashes of a secret are meant to be configured.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "tradeledger/pkg/domain-errors"
)

// Generate returns a random URL-safe secret carrying 256 bits of entropy.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash of secret at cost.
func Hash(secret string, cost int) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// Verify reports a CodeUnauthorized error when secret does not match hash.
func Verify(secret, hash string) error {
	if secret == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "secret required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return fmt.Errorf("verify secret: %w", err)
	}
	return nil
}

// ValidateHash checks that hash is a well-formed bcrypt hash.
func ValidateHash(hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("malformed bcrypt hash: %w", err)
	}
	return nil
}
