package models

import (
	"strings"
	"time"

	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// Type is the kind of trade document.
type Type string

const (
	TypeBillOfLading         Type = "BILL_OF_LADING"
	TypeLetterOfCredit       Type = "LETTER_OF_CREDIT"
	TypeInvoice              Type = "INVOICE"
	TypePurchaseOrder        Type = "PURCHASE_ORDER"
	TypeCertificateOfOrigin  Type = "CERTIFICATE_OF_ORIGIN"
	TypeInsuranceCertificate Type = "INSURANCE_CERTIFICATE"
)

func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case TypeBillOfLading, TypeLetterOfCredit, TypeInvoice, TypePurchaseOrder,
		TypeCertificateOfOrigin, TypeInsuranceCertificate:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown document type: "+s)
}

// Document is an uploaded trade document. It is immutable once created.
type Document struct {
	ID            id.DocumentID     `json:"id"`
	OwnerID       id.UserID         `json:"owner_id"`
	Type          Type              `json:"doc_type"`
	Number        string            `json:"doc_number"`
	ContentHash   string            `json:"content_hash"`
	StoragePath   string            `json:"-"`
	IssuedAt      time.Time         `json:"issued_at"`
	CreatedAt     time.Time         `json:"created_at"`
	TransactionID *id.TransactionID `json:"transaction_id,omitempty"`
}

// StoragePathFor is the blob key of a document's content.
func StoragePathFor(owner id.UserID, documentID id.DocumentID) string {
	return "documents/" + owner.String() + "/" + documentID.String()
}

// VerificationResult is the outcome of re-hashing stored content.
type VerificationResult struct {
	DocumentID     id.DocumentID `json:"document_id"`
	Verified       bool          `json:"verified"`
	StoredHash     string        `json:"stored_hash"`
	RecomputedHash string        `json:"recomputed_hash"`
	VerifiedAt     time.Time     `json:"verified_at"`
}
