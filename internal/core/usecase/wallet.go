package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type WalletUsecase interface {
	CreateDefaultWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	CreateNewWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	SwitchStatus(ctx context.Context, walletID, ownerID uuid.UUID) (*models.Wallet, error)
	ListWithActivity(ctx context.Context, ownerID uuid.UUID) ([]models.WalletActivity, error)
}

type walletUsecase struct {
	store        repository.Store
	transactions TransactionUsecase
	cfg          LedgerConfig
	now          func() time.Time
	log          logger.Logger
}

func NewWalletUsecase(store repository.Store, transactions TransactionUsecase, cfg LedgerConfig, deps Collaborators, log logger.Logger) WalletUsecase {
	deps = deps.withDefaults()
	return &walletUsecase{
		store:        store,
		transactions: transactions,
		cfg:          cfg,
		now:          func() time.Time { return deps.Now().UTC() },
		log:          log,
	}
}

func (uc *walletUsecase) CreateDefaultWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		wallet, err = createDefaultWalletWithin(ctx, repos, ownerID, uc.cfg, uc.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("Default wallet created",
		logger.StringField("wallet_id", wallet.ID.String()),
		logger.StringField("owner_id", ownerID.String()),
		logger.StringField("balance", wallet.Balance.StringFixed(models.MoneyScale)))
	return wallet, nil
}

// createDefaultWalletWithin seeds the promotional balance. It refuses owners
// that already hold any wallet.
func createDefaultWalletWithin(ctx context.Context, repos repository.Repositories, ownerID uuid.UUID, cfg LedgerConfig, now time.Time) (*models.Wallet, error) {
	count, err := repos.Wallets().CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("count wallets: %w", err)
	}
	if count > 0 {
		return nil, domainError(KindConflict, ErrWalletAlreadyInitialized,
			"User with id [%s] already has a wallet.", ownerID)
	}

	wallet := newWallet(ownerID, cfg.PromoBalance, cfg.Currency, now)
	if err := repos.Wallets().Create(ctx, wallet); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return wallet, nil
}

func (uc *walletUsecase) CreateNewWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		// The subscription row lock serializes wallet creation per owner.
		sub, err := repos.Subscriptions().GetActiveByOwnerForUpdate(ctx, ownerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domainError(KindNotFound, ErrSubscriptionNotFound,
					"No active subscription has been found for user with id [%s].", ownerID)
			}
			return fmt.Errorf("get active subscription: %w", err)
		}

		count, err := repos.Wallets().CountByOwner(ctx, ownerID)
		if err != nil {
			return fmt.Errorf("count wallets: %w", err)
		}
		if count >= WalletLimit(sub.Tier) {
			uc.log.Warn("Wallet limit reached",
				logger.StringField("owner_id", ownerID.String()),
				logger.StringField("tier", string(sub.Tier)),
				logger.IntField("wallets", count))
			return domainError(KindConflict, ErrWalletLimitReached,
				"Wallet limit reached: %s tier allows %d wallet(s).", sub.Tier, WalletLimit(sub.Tier))
		}

		wallet = newWallet(ownerID, decimal.Zero, uc.cfg.Currency, uc.now())
		if err := repos.Wallets().Create(ctx, wallet); err != nil {
			return fmt.Errorf("create wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("Wallet created",
		logger.StringField("wallet_id", wallet.ID.String()),
		logger.StringField("owner_id", ownerID.String()))
	return wallet, nil
}

func (uc *walletUsecase) SwitchStatus(ctx context.Context, walletID, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet *models.Wallet
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		var err error
		wallet, err = lockOwnedWallet(ctx, repos, walletID, ownerID)
		if err != nil {
			return err
		}

		if wallet.IsActive() {
			wallet.Status = models.WalletInactive
		} else {
			wallet.Status = models.WalletActive
		}
		wallet.UpdatedAt = uc.now()

		if err := repos.Wallets().Update(ctx, wallet); err != nil {
			return fmt.Errorf("update wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.log.Info("Wallet status switched",
		logger.StringField("wallet_id", walletID.String()),
		logger.StringField("status", string(wallet.Status)))
	return wallet, nil
}

func (uc *walletUsecase) ListWithActivity(ctx context.Context, ownerID uuid.UUID) ([]models.WalletActivity, error) {
	wallets, err := uc.store.Wallets().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	activity := make([]models.WalletActivity, 0, len(wallets))
	for _, w := range wallets {
		txs, err := uc.transactions.LastFourByWallet(ctx, &w)
		if err != nil {
			return nil, err
		}
		activity = append(activity, models.WalletActivity{Wallet: w, Transactions: txs})
	}
	return activity, nil
}

func newWallet(ownerID uuid.UUID, balance decimal.Decimal, currency string, now time.Time) *models.Wallet {
	return &models.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   balance,
		Currency:  currency,
		Status:    models.WalletActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
