package recalc

import (
	"encoding/json"
	"time"

	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// Task is one queued recalculation. Attempt starts at 1.
type Task struct {
	UserID    id.UserID          `json:"user_id"`
	Trigger   riskmodels.Trigger `json:"trigger"`
	Attempt   int                `json:"attempt"`
	RequestID string             `json:"request_id,omitempty"`
}

// DeadLetter is the payload written to the dead-letter topic.
type DeadLetter struct {
	Task     *Task     `json:"task,omitempty"`
	Raw      string    `json:"raw,omitempty"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

func (t Task) Encode() ([]byte, error) {
	return json.Marshal(t)
}

// DecodeTask parses a queued task. Malformed payloads are validation errors
// and are never retried.
func DecodeTask(data []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed recalc task")
	}
	if t.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "recalc task has no user_id")
	}
	if !t.Trigger.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "recalc task has unknown trigger "+string(t.Trigger))
	}
	if t.Attempt < 1 {
		t.Attempt = 1
	}
	return &t, nil
}
