package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity the ledger needs: an id and a unique username.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
