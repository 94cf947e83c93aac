package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SubscriptionUsecase interface {
	// Upgrade charges the wallet and swaps the active subscription in one unit
	// of work. A FAILED charge leaves the subscriptions untouched.
	Upgrade(ctx context.Context, ownerID uuid.UUID, req models.UpgradeRequest, tier models.SubscriptionTier) (*models.Transaction, error)
	History(ctx context.Context, ownerID uuid.UUID) ([]models.Subscription, error)
	Active(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error)
}

type subscriptionUsecase struct {
	store  repository.Store
	ledger *ledgerUsecase
	log    logger.Logger
}

func NewSubscriptionUsecase(store repository.Store, cfg LedgerConfig, deps Collaborators, log logger.Logger) SubscriptionUsecase {
	return &subscriptionUsecase{
		store:  store,
		ledger: newLedger(store, cfg, deps, log),
		log:    log,
	}
}

func (uc *subscriptionUsecase) Upgrade(ctx context.Context, ownerID uuid.UUID, req models.UpgradeRequest, tier models.SubscriptionTier) (*models.Transaction, error) {
	uc.log.Info("Starting subscription upgrade",
		logger.StringField("owner_id", ownerID.String()),
		logger.StringField("wallet_id", req.WalletID.String()),
		logger.StringField("tier", string(tier)),
		logger.StringField("period", string(req.Period)))

	price, err := Price(tier, req.Period)
	if err != nil {
		return nil, err
	}

	box := newOutbox(OperationUpgrade)
	var result *models.Transaction
	err = uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		current, err := repos.Subscriptions().GetActiveByOwnerForUpdate(ctx, ownerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domainError(KindNotFound, ErrSubscriptionNotFound,
					"No active subscription has been found for user with id [%s].", ownerID)
			}
			return fmt.Errorf("get active subscription: %w", err)
		}

		wallet, err := lockOwnedWallet(ctx, repos, req.WalletID, ownerID)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Purchase of %s %s subscription", displayName(string(req.Period)), displayName(string(tier)))
		result, err = uc.ledger.chargeWithin(ctx, repos, box, wallet, price, description, uc.ledger.cfg.OriginEntity)
		if err != nil {
			return err
		}
		if !result.Succeeded() {
			return nil
		}

		now := uc.ledger.rec.now()
		if err := repos.Subscriptions().Complete(ctx, current.ID, now); err != nil {
			return fmt.Errorf("complete subscription %s: %w", current.ID, err)
		}

		next := newSubscription(ownerID, tier, req.Period, price, now)
		if err := repos.Subscriptions().Create(ctx, next); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		uc.log.Error("Subscription upgrade failed",
			logger.ErrorField("error", err),
			logger.StringField("owner_id", ownerID.String()))
		return nil, err
	}

	uc.ledger.finish(ctx, box, result)
	return result, nil
}

func (uc *subscriptionUsecase) History(ctx context.Context, ownerID uuid.UUID) ([]models.Subscription, error) {
	subs, err := uc.store.Subscriptions().ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func (uc *subscriptionUsecase) Active(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	sub, err := uc.store.Subscriptions().GetActiveByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainError(KindNotFound, ErrSubscriptionNotFound,
				"No active subscription has been found for user with id [%s].", ownerID)
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return sub, nil
}

// createDefaultSubscription writes the free monthly plan every account starts on.
func createDefaultSubscription(ctx context.Context, repos repository.Repositories, ownerID uuid.UUID, now func() time.Time) (*models.Subscription, error) {
	sub := newSubscription(ownerID, models.TierDefault, models.PeriodMonthly, decimal.Zero, now())
	if err := repos.Subscriptions().Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create default subscription: %w", err)
	}
	return sub, nil
}

func newSubscription(ownerID uuid.UUID, tier models.SubscriptionTier, period models.SubscriptionPeriod, price decimal.Decimal, now time.Time) *models.Subscription {
	return &models.Subscription{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Status:         models.SubscriptionActive,
		Period:         period,
		Tier:           tier,
		Price:          price,
		RenewalAllowed: period == models.PeriodMonthly,
		CreatedAt:      now,
		CompletedAt:    expiresAt(now, period),
	}
}

// displayName turns "MONTHLY" into "Monthly".
func displayName(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
