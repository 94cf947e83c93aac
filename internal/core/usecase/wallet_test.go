package usecase_test

import (
	"context"
	"testing"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDefaultWallet_OnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()

	w, err := f.wallets.CreateDefaultWallet(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, models.WalletActive, w.Status)
	assert.Equal(t, "EUR", w.Currency)
	assert.True(t, dec("20.00").Equal(w.Balance))

	_, err = f.wallets.CreateDefaultWallet(ctx, owner)
	assert.ErrorIs(t, err, usecase.ErrWalletAlreadyInitialized)
	kind, _ := usecase.KindOf(err)
	assert.Equal(t, usecase.KindConflict, kind)
}

func TestCreateNewWallet_RespectsTierLimit(t *testing.T) {
	tests := []struct {
		name   string
		tier   models.SubscriptionTier
		period models.SubscriptionPeriod
		extra  int
	}{
		{"default", models.TierDefault, models.PeriodMonthly, 0},
		{"premium", models.TierPremium, models.PeriodMonthly, 1},
		{"ultimate", models.TierUltimate, models.PeriodMonthly, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			acc := f.register(t, "alice")
			_, err := f.ledger.TopUp(ctx, acc.Wallet.ID, dec("100.00"))
			require.NoError(t, err)

			if tt.tier != models.TierDefault {
				tx, err := f.subscriptions.Upgrade(ctx, acc.User.ID, models.UpgradeRequest{
					Period: tt.period, WalletID: acc.Wallet.ID,
				}, tt.tier)
				require.NoError(t, err)
				require.True(t, tx.Succeeded())
			}

			for i := 0; i < tt.extra; i++ {
				w, err := f.wallets.CreateNewWallet(ctx, acc.User.ID)
				require.NoError(t, err)
				assert.True(t, w.Balance.IsZero())
				assert.Equal(t, models.WalletActive, w.Status)
			}

			_, err = f.wallets.CreateNewWallet(ctx, acc.User.ID)
			require.ErrorIs(t, err, usecase.ErrWalletLimitReached)
			assert.Contains(t, err.Error(), "Wallet limit reached")

			wallets, err := f.store.Wallets().ListByOwner(ctx, acc.User.ID)
			require.NoError(t, err)
			assert.Len(t, wallets, usecase.WalletLimit(tt.tier))
		})
	}
}

func TestCreateNewWallet_WithoutSubscription(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallets.CreateNewWallet(context.Background(), uuid.New())
	assert.ErrorIs(t, err, usecase.ErrSubscriptionNotFound)
}

func TestSwitchStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	w, err := f.wallets.SwitchStatus(ctx, alice.Wallet.ID, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WalletInactive, w.Status)

	w, err = f.wallets.SwitchStatus(ctx, alice.Wallet.ID, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WalletActive, w.Status)

	_, err = f.wallets.SwitchStatus(ctx, alice.Wallet.ID, bob.User.ID)
	assert.ErrorIs(t, err, usecase.ErrWalletOwnership)

	_, err = f.wallets.SwitchStatus(ctx, uuid.New(), alice.User.ID)
	assert.ErrorIs(t, err, usecase.ErrWalletNotFound)

	stored, err := f.store.Wallets().GetByID(ctx, alice.Wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WalletActive, stored.Status)
}

func TestListWithActivity_LastFourSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.register(t, "alice")
	w := acc.Wallet

	for _, amount := range []string{"1.00", "2.00", "3.00", "4.00", "5.00"} {
		_, err := f.ledger.Charge(ctx, w.OwnerID, w.ID, dec(amount), "test")
		require.NoError(t, err)
	}
	_, err := f.ledger.Charge(ctx, w.OwnerID, w.ID, dec("99.00"), "declined")
	require.NoError(t, err)

	activity, err := f.wallets.ListWithActivity(ctx, acc.User.ID)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, w.ID, activity[0].Wallet.ID)

	txs := activity[0].Transactions
	require.Len(t, txs, 4)
	for _, tx := range txs {
		assert.True(t, tx.Succeeded())
	}
	assert.True(t, dec("5.00").Equal(txs[0].Amount))
	assert.True(t, dec("2.00").Equal(txs[3].Amount))
}
