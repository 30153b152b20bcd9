package handler

import (
	"strings"

	"github.com/shopspring/decimal"

	"tradeledger/internal/transaction/models"
	"tradeledger/internal/transaction/service"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// CreateRequest is the body of POST /transactions. Amount is a decimal
// string so no precision is lost in JSON.
type CreateRequest struct {
	SellerID    string `json:"seller_id" validate:"required"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency" validate:"max=3"`
	Description string `json:"description" validate:"max=1024"`

	input service.CreateInput
}

func (r *CreateRequest) Validate() error {
	sellerID, err := id.ParseUserID(r.SellerID)
	if err != nil {
		return err
	}
	r.input = service.CreateInput{
		SellerID:    sellerID,
		Currency:    r.Currency,
		Description: r.Description,
	}
	if amount := strings.TrimSpace(r.Amount); amount != "" {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "amount must be a decimal number")
		}
		r.input.Amount = &d
	}
	return nil
}

// StatusRequest is the body of PATCH /transactions/{id}/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required"`

	parsed models.Status
}

func (r *StatusRequest) Validate() error {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsed = status
	return nil
}
