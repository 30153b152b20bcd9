package handler

import (
	"time"

	"tradeledger/internal/document/models"
)

type DocumentResponse struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	DocType       string    `json:"doc_type"`
	DocNumber     string    `json:"doc_number"`
	ContentHash   string    `json:"content_hash"`
	IssuedAt      time.Time `json:"issued_at"`
	CreatedAt     time.Time `json:"created_at"`
	TransactionID string    `json:"transaction_id,omitempty"`
}

type VerificationResponse struct {
	DocumentID     string    `json:"document_id"`
	Verified       bool      `json:"verified"`
	StoredHash     string    `json:"stored_hash"`
	RecomputedHash string    `json:"recomputed_hash"`
	VerifiedAt     time.Time `json:"verified_at"`
}

func FromDocument(d *models.Document) *DocumentResponse {
	resp := &DocumentResponse{
		ID:          d.ID.String(),
		OwnerID:     d.OwnerID.String(),
		DocType:     string(d.Type),
		DocNumber:   d.Number,
		ContentHash: d.ContentHash,
		IssuedAt:    d.IssuedAt,
		CreatedAt:   d.CreatedAt,
	}
	if d.TransactionID != nil {
		resp.TransactionID = d.TransactionID.String()
	}
	return resp
}

func FromVerification(v *models.VerificationResult) *VerificationResponse {
	return &VerificationResponse{
		DocumentID:     v.DocumentID.String(),
		Verified:       v.Verified,
		StoredHash:     v.StoredHash,
		RecomputedHash: v.RecomputedHash,
		VerifiedAt:     v.VerifiedAt,
	}
}
