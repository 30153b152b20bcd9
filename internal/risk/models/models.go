package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// Category buckets a numeric score.
type Category string

const (
	CategoryLow    Category = "LOW"
	CategoryMedium Category = "MEDIUM"
	CategoryHigh   Category = "HIGH"
)

// Category cut points: score <= LowMax is LOW, score <= MediumMax is MEDIUM.
const (
	LowMax    = 30
	MediumMax = 70
)

// CategoryFor maps every score onto exactly one category.
func CategoryFor(score int) Category {
	switch {
	case score <= LowMax:
		return CategoryLow
	case score <= MediumMax:
		return CategoryMedium
	default:
		return CategoryHigh
	}
}

// Trigger says why a recalculation was requested.
type Trigger string

const (
	TriggerManual                  Trigger = "manual"
	TriggerVerification            Trigger = "verification"
	TriggerTransactionStatusChange Trigger = "transaction_status_change"
)

func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return TriggerManual, nil
	}
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown trigger: "+s)
	}
	return t, nil
}

func (t Trigger) IsValid() bool {
	switch t {
	case TriggerManual, TriggerVerification, TriggerTransactionStatusChange:
		return true
	}
	return false
}

// Score is the current risk assessment of one user.
type Score struct {
	UserID      id.UserID `json:"user_id"`
	Score       int       `json:"score"`
	Category    Category  `json:"category"`
	Rationale   string    `json:"rationale"`
	LastUpdated time.Time `json:"last_updated"`
}

// HistoryRecord is an append-only snapshot written on every recalculation.
type HistoryRecord struct {
	ID         uuid.UUID `json:"id"`
	UserID     id.UserID `json:"user_id"`
	Score      int       `json:"score"`
	Category   Category  `json:"category"`
	Rationale  string    `json:"rationale"`
	Trigger    Trigger   `json:"trigger"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Breakdown holds the four normalized sub-scores, each in [0,100].
type Breakdown struct {
	DocumentIntegrity   int `json:"document_integrity"`
	LedgerActivity      int `json:"ledger_activity"`
	TransactionBehavior int `json:"transaction_behavior"`
	ExternalSignal      int `json:"external_signal"`
}

// Result is the outcome of ComputeScore. Skipped results carry no score.
type Result struct {
	Skipped    bool
	SkipReason string
	Score      *Score
	Breakdown  Breakdown
}
