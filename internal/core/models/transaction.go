package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionDeposit    TransactionType = "DEPOSIT"
	TransactionWithdrawal TransactionType = "WITHDRAWAL"
)

type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "SUCCEEDED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction is the write-once audit record of one attempted money movement.
// Sender and Receiver are free text: a wallet id or an external entity name.
type Transaction struct {
	ID            uuid.UUID         `json:"id" db:"id"`
	OwnerID       uuid.UUID         `json:"owner_id" db:"owner_id"`
	Sender        string            `json:"sender" db:"sender"`
	Receiver      string            `json:"receiver" db:"receiver"`
	Amount        decimal.Decimal   `json:"amount" db:"amount"`
	BalanceLeft   decimal.Decimal   `json:"balance_left" db:"balance_left"`
	Currency      string            `json:"currency" db:"currency"`
	Type          TransactionType   `json:"type" db:"type"`
	Status        TransactionStatus `json:"status" db:"status"`
	Description   string            `json:"description" db:"description"`
	FailureReason *string           `json:"failure_reason,omitempty" db:"failure_reason"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

func (t *Transaction) Succeeded() bool {
	return t.Status == TransactionSucceeded
}

// Reason returns the failure reason or an empty string.
func (t *Transaction) Reason() string {
	if t.FailureReason == nil {
		return ""
	}
	return *t.FailureReason
}
