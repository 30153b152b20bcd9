package handler

import (
	"time"

	"tradeledger/internal/ledger/models"
	id "tradeledger/pkg/domain"
)

type EntryResponse struct {
	ID         string            `json:"id"`
	DocumentID string            `json:"document_id"`
	Action     string            `json:"action"`
	ActorID    string            `json:"actor_id"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

type LedgerResponse struct {
	DocumentID string           `json:"document_id"`
	Entries    []*EntryResponse `json:"entries"`
}

func FromEntry(e *models.Entry) *EntryResponse {
	return &EntryResponse{
		ID:         e.ID.String(),
		DocumentID: e.DocumentID.String(),
		Action:     string(e.Action),
		ActorID:    e.ActorID.String(),
		Metadata:   e.Metadata,
		CreatedAt:  e.CreatedAt,
	}
}

func FromEntries(documentID id.DocumentID, entries []*models.Entry) *LedgerResponse {
	out := &LedgerResponse{DocumentID: documentID.String(), Entries: make([]*EntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, FromEntry(e))
	}
	return out
}
