package handler

import (
	"tradeledger/internal/ledger/models"
	dErrors "tradeledger/pkg/domain-errors"
)

// RecordRequest is the body of POST /documents/{id}/ledger.
type RecordRequest struct {
	Action   string            `json:"action" validate:"required"`
	Metadata map[string]string `json:"metadata"`

	parsedAction models.Action
}

func (r *RecordRequest) Validate() error {
	if len(r.Metadata) > 32 {
		return dErrors.New(dErrors.CodeValidation, "metadata may hold at most 32 keys")
	}
	for k, v := range r.Metadata {
		if len(k) > 64 || len(v) > 1024 {
			return dErrors.New(dErrors.CodeValidation, "metadata key or value too long")
		}
	}
	action, err := models.ParseAction(r.Action)
	if err != nil {
		return err
	}
	r.parsedAction = action
	return nil
}
