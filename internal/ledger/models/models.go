package models

import (
	"strings"
	"time"

	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// Action tags what happened to a document.
type Action string

const (
	ActionIssued           Action = "ISSUED"
	ActionAmended          Action = "AMENDED"
	ActionShipped          Action = "SHIPPED"
	ActionReceived         Action = "RECEIVED"
	ActionPaid             Action = "PAID"
	ActionCancelled        Action = "CANCELLED"
	ActionVerified         Action = "VERIFIED"
	ActionRiskRecalculated Action = "RISK_RECALCULATED"
)

// Metadata keys written by the service itself.
const (
	MetaResult         = "result"
	MetaVerified       = "verified"
	MetaStoredHash     = "stored_hash"
	MetaRecomputedHash = "recomputed_hash"
	MetaScore          = "score"
	MetaCategory       = "category"
	MetaTrigger        = "trigger"

	ResultPass = "PASS"
	ResultFail = "FAIL"
)

// ParseAction validates an action tag. Matching is case-insensitive.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown ledger action: "+s)
	}
	return a, nil
}

func (a Action) IsValid() bool {
	switch a {
	case ActionIssued, ActionAmended, ActionShipped, ActionReceived, ActionPaid,
		ActionCancelled, ActionVerified, ActionRiskRecalculated:
		return true
	}
	return false
}

// IsManual reports whether users may record the action directly. The rest are
// authored by the service.
func (a Action) IsManual() bool {
	switch a {
	case ActionAmended, ActionShipped, ActionReceived, ActionPaid, ActionCancelled:
		return true
	}
	return false
}

// Entry is one immutable audit record for a document.
type Entry struct {
	ID         id.EntryID        `json:"id"`
	DocumentID id.DocumentID     `json:"document_id"`
	Action     Action            `json:"action"`
	ActorID    id.UserID         `json:"actor_id"`
	Metadata   map[string]string `json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
	// Sequence is the store-assigned insertion counter; it breaks ties
	// between entries with equal CreatedAt.
	Sequence int64 `json:"sequence"`
}

// VerificationPassed reports whether a VERIFIED entry recorded a match.
func (e *Entry) VerificationPassed() bool {
	return e.Metadata[MetaResult] == ResultPass
}
