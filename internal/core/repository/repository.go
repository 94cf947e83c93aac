package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	// GetByIDForUpdate locks the wallet row until the surrounding unit of work ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error)
	// ListActiveByOwnerUsername orders by creation time, then id.
	ListActiveByOwnerUsername(ctx context.Context, username string) ([]models.Wallet, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	Update(ctx context.Context, wallet *models.Wallet) error
}

// TransactionRepository is append-only.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error)
	ListSucceededByWallet(ctx context.Context, walletID string, ownerID uuid.UUID, limit int) ([]models.Transaction, error)
}

type SubscriptionRepository interface {
	Create(ctx context.Context, sub *models.Subscription) error
	GetActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error)
	GetActiveByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error)
	// Complete flips an ACTIVE subscription to COMPLETED. ErrNotFound if it is not ACTIVE.
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Subscription, error)
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Repositories interface {
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Subscriptions() SubscriptionRepository
	Users() UserRepository
}

// Store gives non-transactional access for reads and runs units of work.
// Everything fn writes through repos commits together or not at all.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
