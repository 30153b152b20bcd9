package handler

import (
	"time"

	"tradeledger/internal/transaction/models"
)

type TransactionResponse struct {
	ID          string    `json:"id"`
	BuyerID     string    `json:"buyer_id"`
	SellerID    string    `json:"seller_id"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Description string    `json:"description,omitempty"`
	AllowedNext []string  `json:"allowed_next"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TransactionListResponse struct {
	Transactions []*TransactionResponse `json:"transactions"`
}

func FromTransaction(t *models.Transaction) *TransactionResponse {
	resp := &TransactionResponse{
		ID:          t.ID.String(),
		BuyerID:     t.BuyerID.String(),
		SellerID:    t.SellerID.String(),
		Status:      string(t.Status),
		Currency:    t.Currency,
		Description: t.Description,
		AllowedNext: make([]string, 0, 3),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Amount != nil {
		resp.Amount = t.Amount.String()
	}
	for _, next := range t.Status.AllowedNext() {
		resp.AllowedNext = append(resp.AllowedNext, string(next))
	}
	return resp
}

func FromTransactions(txs []*models.Transaction) *TransactionListResponse {
	resp := &TransactionListResponse{Transactions: make([]*TransactionResponse, 0, len(txs))}
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, FromTransaction(t))
	}
	return resp
}
