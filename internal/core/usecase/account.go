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
)

// Account is what onboarding produces.
type Account struct {
	User         models.User         `json:"user"`
	Wallet       models.Wallet       `json:"wallet"`
	Subscription models.Subscription `json:"subscription"`
}

type AccountUsecase interface {
	// Register creates the user with a default subscription and wallet.
	Register(ctx context.Context, username string) (*Account, error)
	UpdateContact(ctx context.Context, ownerID uuid.UUID, email string) error
}

type accountUsecase struct {
	store    repository.Store
	cfg      LedgerConfig
	notifier Notifier
	now      func() time.Time
	log      logger.Logger
}

func NewAccountUsecase(store repository.Store, cfg LedgerConfig, deps Collaborators, log logger.Logger) AccountUsecase {
	deps = deps.withDefaults()
	return &accountUsecase{
		store:    store,
		cfg:      cfg,
		notifier: deps.Notifier,
		now:      func() time.Time { return deps.Now().UTC() },
		log:      log,
	}
}

func (uc *accountUsecase) Register(ctx context.Context, username string) (*Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domainError(KindInvalid, ErrInvalidUsername, "Username must not be blank.")
	}

	var account Account
	err := uc.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		now := uc.now()
		user := &models.User{ID: uuid.New(), Username: username, CreatedAt: now}
		if err := repos.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return domainError(KindConflict, ErrUsernameTaken, "Username [%s] already exists.", username)
			}
			return fmt.Errorf("create user: %w", err)
		}

		sub, err := createDefaultSubscription(ctx, repos, user.ID, func() time.Time { return now })
		if err != nil {
			return err
		}

		wallet, err := createDefaultWalletWithin(ctx, repos, user.ID, uc.cfg, now)
		if err != nil {
			return err
		}

		account = Account{User: *user, Wallet: *wallet, Subscription: *sub}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.SaveNotificationPreference(account.User.ID, false, "")
	uc.log.Info("User registered",
		logger.StringField("user_id", account.User.ID.String()),
		logger.StringField("username", username))
	return &account, nil
}

// UpdateContact enables notifications iff the email is not blank.
func (uc *accountUsecase) UpdateContact(ctx context.Context, ownerID uuid.UUID, email string) error {
	if _, err := uc.store.Users().GetByID(ctx, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domainError(KindNotFound, ErrUserNotFound, "User with id [%s] does not exist.", ownerID)
		}
		return fmt.Errorf("get user: %w", err)
	}

	email = strings.TrimSpace(email)
	uc.notifier.SaveNotificationPreference(ownerID, email != "", email)
	return nil
}
