package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
)

// Status is the lifecycle state of a trade transaction.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDisputed   Status = "DISPUTED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists the allowed next states. Terminal states map to nothing.
var transitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusDisputed, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusDisputed, StatusCancelled},
	StatusDisputed:   {StatusInProgress, StatusCancelled},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "unknown transaction status: "+s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	return slices.Contains(transitions[s], next)
}

// AllowedNext returns a copy of the states reachable from s.
func (s Status) AllowedNext() []Status {
	return slices.Clone(transitions[s])
}

// Transaction is a trade between a buyer and a seller. Only the state
// machine mutates Status.
type Transaction struct {
	ID          id.TransactionID `json:"id"`
	BuyerID     id.UserID        `json:"buyer_id"`
	SellerID    id.UserID        `json:"seller_id"`
	Status      Status           `json:"status"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Description string           `json:"description,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (t *Transaction) IsParty(userID id.UserID) bool {
	return t.BuyerID == userID || t.SellerID == userID
}

// ValidateTransition checks next against the transition table.
func (t *Transaction) ValidateTransition(next Status) error {
	if !next.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown transaction status: "+string(next))
	}
	if t.Status.IsTerminal() {
		return dErrors.New(dErrors.CodeValidation, "transaction is "+string(t.Status)+" and cannot change status")
	}
	if !t.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeValidation, "cannot move transaction from "+string(t.Status)+" to "+string(next))
	}
	return nil
}

// Counts summarizes a user's transactions for risk scoring.
type Counts struct {
	Total     int
	Disputed  int
	Cancelled int
	Completed int
}

func CountByStatus(txs []*Transaction) Counts {
	c := Counts{Total: len(txs)}
	for _, t := range txs {
		switch t.Status {
		case StatusDisputed:
			c.Disputed++
		case StatusCancelled:
			c.Cancelled++
		case StatusCompleted:
			c.Completed++
		}
	}
	return c
}
