package usecase

import (
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/shopspring/decimal"
)

type priceKey struct {
	tier   models.SubscriptionTier
	period models.SubscriptionPeriod
}

var priceTable = map[priceKey]decimal.Decimal{
	{models.TierDefault, models.PeriodMonthly}:  decimal.Zero,
	{models.TierDefault, models.PeriodYearly}:   decimal.Zero,
	{models.TierPremium, models.PeriodMonthly}:  decimal.RequireFromString("19.99"),
	{models.TierPremium, models.PeriodYearly}:   decimal.RequireFromString("199.99"),
	{models.TierUltimate, models.PeriodMonthly}: decimal.RequireFromString("49.99"),
	{models.TierUltimate, models.PeriodYearly}:  decimal.RequireFromString("499.99"),
}

// Price is total over the defined tiers and periods; anything else is an
// invalid subscription.
func Price(tier models.SubscriptionTier, period models.SubscriptionPeriod) (decimal.Decimal, error) {
	price, ok := priceTable[priceKey{tier: tier, period: period}]
	if !ok {
		return decimal.Zero, domainError(KindInvalid, ErrInvalidSubscription,
			"Unknown subscription tier [%s] or period [%s].", tier, period)
	}
	return price, nil
}

var walletLimits = map[models.SubscriptionTier]int{
	models.TierDefault:  1,
	models.TierPremium:  2,
	models.TierUltimate: 3,
}

// WalletLimit is how many wallets an owner on tier may hold.
func WalletLimit(tier models.SubscriptionTier) int {
	return walletLimits[tier]
}

// expiresAt adds one billing period and clamps to the last day of the target
// month, so Jan 31 + 1 month is the end of February.
func expiresAt(from time.Time, period models.SubscriptionPeriod) time.Time {
	months := 1
	if period == models.PeriodYearly {
		months = 12
	}
	return addMonthsClamped(from, months)
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return first.AddDate(0, 0, day-1)
}
