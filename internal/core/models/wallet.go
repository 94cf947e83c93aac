package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for every monetary value.
const MoneyScale = 2

type WalletStatus string

const (
	WalletActive   WalletStatus = "ACTIVE"
	WalletInactive WalletStatus = "INACTIVE"
)

// Wallet holds a balance for one owner. The owner is referenced by id only.
type Wallet struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	OwnerID   uuid.UUID       `json:"owner_id" db:"owner_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Currency  string          `json:"currency" db:"currency"` // ISO 4217: "EUR"
	Status    WalletStatus    `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

func (w *Wallet) IsActive() bool {
	return w.Status == WalletActive
}

// TransferRequest moves money from one of the sender's wallets to the active
// wallet of another user.
type TransferRequest struct {
	FromWalletID     uuid.UUID       `json:"fromWalletId"`
	UsernameReceiver string          `json:"toUsername"`
	Amount           decimal.Decimal `json:"amount"`
}

// WalletActivity is a wallet together with its most recent successful transactions.
type WalletActivity struct {
	Wallet       Wallet        `json:"wallet"`
	Transactions []Transaction `json:"transactions"`
}
