// Package domain holds the typed identifiers and small value types shared by
// every module. Typed IDs keep a document id from being passed where a user id
// is expected; the compiler enforces the distinction.
package domain

import (
	"database/sql/driver"
	"strings"

	"github.com/google/uuid"

	dErrors "tradeledger/pkg/domain-errors"
)

type (
	UserID        uuid.UUID
	DocumentID    uuid.UUID
	EntryID       uuid.UUID
	TransactionID uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// ParseUserID validates and converts a string into a UserID.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user_id", s)
	return UserID(u), err
}

// ParseDocumentID validates and converts a string into a DocumentID.
func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document_id", s)
	return DocumentID(u), err
}

// ParseTransactionID validates and converts a string into a TransactionID.
func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID("transaction_id", s)
	return TransactionID(u), err
}

func NewUserID() UserID               { return UserID(uuid.New()) }
func NewDocumentID() DocumentID       { return DocumentID(uuid.New()) }
func NewEntryID() EntryID             { return EntryID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id DocumentID) String() string    { return uuid.UUID(id).String() }
func (id EntryID) String() string       { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id TransactionID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EntryID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TransactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// Value and Scan let typed ids travel through database/sql directly.
func (id UserID) Value() (driver.Value, error)        { return uuid.UUID(id).Value() }
func (id DocumentID) Value() (driver.Value, error)    { return uuid.UUID(id).Value() }
func (id EntryID) Value() (driver.Value, error)       { return uuid.UUID(id).Value() }
func (id TransactionID) Value() (driver.Value, error) { return uuid.UUID(id).Value() }

func (id *UserID) Scan(src any) error        { return (*uuid.UUID)(id).Scan(src) }
func (id *DocumentID) Scan(src any) error    { return (*uuid.UUID)(id).Scan(src) }
func (id *EntryID) Scan(src any) error       { return (*uuid.UUID)(id).Scan(src) }
func (id *TransactionID) Scan(src any) error { return (*uuid.UUID)(id).Scan(src) }
