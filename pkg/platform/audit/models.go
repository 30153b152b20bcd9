package audit

import (
	"context"
	"time"

	id "tradeledger/pkg/domain"
)

// Action names an administrative action recorded in the audit log.
type Action string

const (
	ActionTransactionStatusChanged Action = "transaction_status_changed"
	ActionUserRoleAssigned         Action = "user_role_assigned"
	ActionRecalcDeadLettered       Action = "risk_recalc_dead_lettered"
)

// Event is emitted from domain logic to capture privileged actions. It is
// separate from the per-document ledger: the ledger is owned by documents,
// audit events are owned by the operators who performed them.
type Event struct {
	ID          string
	Timestamp   time.Time
	ActorID     id.UserID
	ActorRole   id.Role
	Action      Action
	SubjectType string // "transaction", "user", ...
	SubjectID   string
	From        string
	To          string
	Reason      string
	RequestID   string
}

// Store persists audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subjectType, subjectID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
