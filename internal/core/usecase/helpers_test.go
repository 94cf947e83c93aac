package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository/memory"
	"github.com/Nzyazin/smartwallet/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const origin = "Smart Wallet Ltd"

type sentNotification struct {
	ownerID uuid.UUID
	subject string
	body    string
}

type savedPreference struct {
	ownerID     uuid.UUID
	enabled     bool
	contactInfo string
}

type fakeNotifier struct {
	mu          sync.Mutex
	sent        []sentNotification
	preferences []savedPreference
}

func (n *fakeNotifier) SendNotification(ownerID uuid.UUID, subject, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{ownerID: ownerID, subject: subject, body: body})
}

func (n *fakeNotifier) SaveNotificationPreference(ownerID uuid.UUID, enabled bool, contactInfo string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.preferences = append(n.preferences, savedPreference{ownerID: ownerID, enabled: enabled, contactInfo: contactInfo})
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// stepClock moves one second forward on every reading so records get distinct timestamps.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store         *memory.Store
	notifier      *fakeNotifier
	clock         *stepClock
	ledger        usecase.LedgerUsecase
	subscriptions usecase.SubscriptionUsecase
	transactions  usecase.TransactionUsecase
	wallets       usecase.WalletUsecase
	accounts      usecase.AccountUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	notifier := &fakeNotifier{}
	clock := &stepClock{t: time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)}
	cfg := usecase.LedgerConfig{
		OriginEntity: origin,
		PromoBalance: decimal.RequireFromString("20.00"),
		Currency:     "EUR",
	}
	deps := usecase.Collaborators{Notifier: notifier, Now: clock.Now}
	log := logger.NewNop()

	transactions := usecase.NewTransactionUsecase(store.Transactions(), deps, log)
	return &fixture{
		store:         store,
		notifier:      notifier,
		clock:         clock,
		ledger:        usecase.NewLedgerUsecase(store, cfg, deps, log),
		subscriptions: usecase.NewSubscriptionUsecase(store, cfg, deps, log),
		transactions:  transactions,
		wallets:       usecase.NewWalletUsecase(store, transactions, cfg, deps, log),
		accounts:      usecase.NewAccountUsecase(store, cfg, deps, log),
	}
}

// register creates a user with the default subscription and a 20.00 wallet.
func (f *fixture) register(t *testing.T, username string) *usecase.Account {
	t.Helper()
	account, err := f.accounts.Register(context.Background(), username)
	require.NoError(t, err)
	return account
}

func (f *fixture) balance(t *testing.T, walletID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.store.Wallets().GetByID(context.Background(), walletID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) deactivate(t *testing.T, w models.Wallet) {
	t.Helper()
	updated, err := f.wallets.SwitchStatus(context.Background(), w.ID, w.OwnerID)
	require.NoError(t, err)
	require.Equal(t, models.WalletInactive, updated.Status)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
