package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionCompleted SubscriptionStatus = "COMPLETED"
)

type SubscriptionPeriod string

const (
	PeriodMonthly SubscriptionPeriod = "MONTHLY"
	PeriodYearly  SubscriptionPeriod = "YEARLY"
)

type SubscriptionTier string

const (
	TierDefault  SubscriptionTier = "DEFAULT"
	TierPremium  SubscriptionTier = "PREMIUM"
	TierUltimate SubscriptionTier = "ULTIMATE"
)

// Subscription keeps the price it was bought for; at most one per owner is ACTIVE.
type Subscription struct {
	ID             uuid.UUID          `json:"id" db:"id"`
	OwnerID        uuid.UUID          `json:"owner_id" db:"owner_id"`
	Status         SubscriptionStatus `json:"status" db:"status"`
	Period         SubscriptionPeriod `json:"period" db:"period"`
	Tier           SubscriptionTier   `json:"tier" db:"tier"`
	Price          decimal.Decimal    `json:"price" db:"price"`
	RenewalAllowed bool               `json:"renewal_allowed" db:"renewal_allowed"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	CompletedAt    time.Time          `json:"completed_at" db:"completed_at"`
}

type UpgradeRequest struct {
	Period   SubscriptionPeriod `json:"period"`
	WalletID uuid.UUID          `json:"walletId"`
}
