package postgres

import (
	"context"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const walletColumns = `id, owner_id, balance, currency, status, created_at, updated_at`

type walletRepo struct {
	q   sqlx.ExtContext
	log logger.Logger
}

func (r *walletRepo) Create(ctx context.Context, wallet *models.Wallet) error {
	const query = `INSERT INTO wallets (` + walletColumns + `)
		VALUES (:id, :owner_id, :balance, :currency, :status, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, wallet); err != nil {
		r.log.Error("Error creating wallet",
			logger.ErrorField("error", err),
			logger.StringField("wallet_id", wallet.ID.String()))
		return fmt.Errorf("create wallet: %w", err)
	}
	return nil
}

func (r *walletRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return r.get(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

func (r *walletRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return r.get(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

func (r *walletRepo) get(ctx context.Context, query string, args ...interface{}) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := sqlx.GetContext(ctx, r.q, &wallet, query, args...); err != nil {
		if nf := notFound(err, "wallet"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Wallet, error) {
	const query = `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_id = $1
		ORDER BY created_at, id`

	wallets := make([]models.Wallet, 0)
	if err := sqlx.SelectContext(ctx, r.q, &wallets, query, ownerID); err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

func (r *walletRepo) ListActiveByOwnerUsername(ctx context.Context, username string) ([]models.Wallet, error) {
	const query = `SELECT w.id, w.owner_id, w.balance, w.currency, w.status, w.created_at, w.updated_at
		FROM wallets w
		JOIN users u ON u.id = w.owner_id
		WHERE u.username = $1 AND w.status = $2
		ORDER BY w.created_at, w.id`

	wallets := make([]models.Wallet, 0)
	if err := sqlx.SelectContext(ctx, r.q, &wallets, query, username, models.WalletActive); err != nil {
		return nil, fmt.Errorf("list active wallets by username: %w", err)
	}
	return wallets, nil
}

func (r *walletRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.q, &count, `SELECT COUNT(*) FROM wallets WHERE owner_id = $1`, ownerID); err != nil {
		return 0, fmt.Errorf("count wallets: %w", err)
	}
	return count, nil
}

func (r *walletRepo) Update(ctx context.Context, wallet *models.Wallet) error {
	const query = `UPDATE wallets
		SET balance = $2, status = $3, updated_at = $4
		WHERE id = $1`

	res, err := r.q.ExecContext(ctx, query, wallet.ID, wallet.Balance, wallet.Status, wallet.UpdatedAt)
	if err != nil {
		if pqCode(err) == checkViolation {
			r.log.Error("Wallet balance check violated",
				logger.StringField("wallet_id", wallet.ID.String()),
				logger.StringField("balance", wallet.Balance.String()))
		}
		return fmt.Errorf("update wallet: %w", err)
	}
	return requireOneRow(res, "update wallet")
}
