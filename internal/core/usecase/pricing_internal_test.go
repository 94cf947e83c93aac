package usecase

import (
	"testing"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/stretchr/testify/assert"
)

func TestExpiresAt_ClampsToMonthEnd(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		from   time.Time
		period models.SubscriptionPeriod
		want   time.Time
	}{
		{"plain month", day(2024, time.March, 15), models.PeriodMonthly, day(2024, time.April, 15)},
		{"jan 31 leap year", day(2024, time.January, 31), models.PeriodMonthly, day(2024, time.February, 29)},
		{"jan 31 common year", day(2023, time.January, 31), models.PeriodMonthly, day(2023, time.February, 28)},
		{"mar 31", day(2024, time.March, 31), models.PeriodMonthly, day(2024, time.April, 30)},
		{"december rolls year", day(2024, time.December, 31), models.PeriodMonthly, day(2025, time.January, 31)},
		{"feb 29 plus year", day(2024, time.February, 29), models.PeriodYearly, day(2025, time.February, 28)},
		{"plain year", day(2024, time.June, 1), models.PeriodYearly, day(2025, time.June, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expiresAt(tt.from, tt.period))
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Monthly", displayName("MONTHLY"))
	assert.Equal(t, "Ultimate", displayName("ULTIMATE"))
	assert.Equal(t, "", displayName(""))
}

func TestWalletLimit(t *testing.T) {
	assert.Equal(t, 1, WalletLimit(models.TierDefault))
	assert.Equal(t, 2, WalletLimit(models.TierPremium))
	assert.Equal(t, 3, WalletLimit(models.TierUltimate))
	assert.Equal(t, 0, WalletLimit("UNKNOWN"))
}
