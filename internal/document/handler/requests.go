package handler

import (
	"strings"
	"time"

	"tradeledger/internal/document/models"
	"tradeledger/internal/document/service"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// UploadRequest is the body of POST /documents. Content is base64 encoded.
type UploadRequest struct {
	DocType       string `json:"doc_type" validate:"required"`
	DocNumber     string `json:"doc_number" validate:"required,max=128"`
	IssuedAt      string `json:"issued_at"`
	TransactionID string `json:"transaction_id"`
	Content       []byte `json:"content" validate:"required"`

	input service.UploadInput
}

func (r *UploadRequest) Validate() error {
	docType, err := models.ParseType(r.DocType)
	if err != nil {
		return err
	}
	r.input = service.UploadInput{
		Type:    docType,
		Number:  strings.TrimSpace(r.DocNumber),
		Content: r.Content,
	}
	if r.IssuedAt != "" {
		issued, err := time.Parse(time.RFC3339, r.IssuedAt)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "issued_at must be an RFC 3339 timestamp")
		}
		r.input.IssuedAt = issued
	}
	if r.TransactionID != "" {
		txID, err := id.ParseTransactionID(r.TransactionID)
		if err != nil {
			return err
		}
		r.input.TransactionID = &txID
	}
	return nil
}
