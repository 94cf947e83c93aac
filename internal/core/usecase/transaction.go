package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
)

const recentActivityLimit = 4

type TransactionUsecase interface {
	// GetAllByOwnerID returns the owner's history, newest first.
	GetAllByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	LastFourByWallet(ctx context.Context, wallet *models.Wallet) ([]models.Transaction, error)
}

type transactionUsecase struct {
	repo  repository.TransactionRepository
	cache ActivityCache
	log   logger.Logger
}

func NewTransactionUsecase(repo repository.TransactionRepository, deps Collaborators, log logger.Logger) TransactionUsecase {
	return &transactionUsecase{
		repo:  repo,
		cache: deps.withDefaults().Cache,
		log:   log,
	}
}

func (uc *transactionUsecase) GetAllByOwnerID(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error) {
	txs, err := uc.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (uc *transactionUsecase) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	tx, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domainError(KindNotFound, ErrTransactionNotFound, "Transaction with [%s] does not exist.", id)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

// LastFourByWallet serves from the activity cache when possible. Cache errors
// only cost a database read.
func (uc *transactionUsecase) LastFourByWallet(ctx context.Context, wallet *models.Wallet) ([]models.Transaction, error) {
	key := wallet.ID.String()

	cached, version, ok, err := uc.cache.Get(ctx, key)
	if err != nil {
		uc.log.Warn("Activity cache read failed",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", key))
	}
	if ok {
		return cached, nil
	}

	txs, err := uc.repo.ListSucceededByWallet(ctx, key, wallet.OwnerID, recentActivityLimit)
	if err != nil {
		return nil, fmt.Errorf("list wallet activity: %w", err)
	}

	if err := uc.cache.Set(ctx, key, version, txs); err != nil {
		uc.log.Warn("Activity cache write failed",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", key))
	}
	return txs, nil
}
