package models

import (
	"time"

	id "tradeledger/pkg/domain"
)

// User is a directory entry. Authentication lives elsewhere; the directory
// only answers which role a user holds.
type User struct {
	ID        id.UserID
	Role      id.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}
