package handler

import (
	"tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
)

// ComputeRequest is the body of POST /risk/compute.
type ComputeRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Trigger string `json:"trigger"`

	parsedUserID  id.UserID
	parsedTrigger models.Trigger
}

func (r *ComputeRequest) Validate() error {
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return err
	}
	trigger, err := models.ParseTrigger(r.Trigger)
	if err != nil {
		return err
	}
	r.parsedUserID = userID
	r.parsedTrigger = trigger
	return nil
}
