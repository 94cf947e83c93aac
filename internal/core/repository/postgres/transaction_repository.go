package postgres

import (
	"context"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const transactionColumns = `id, owner_id, sender, receiver, amount, balance_left, currency,
	type, status, description, failure_reason, created_at`

type transactionRepo struct {
	q sqlx.ExtContext
}

func (r *transactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (:id, :owner_id, :sender, :receiver, :amount, :balance_left, :currency,
			:type, :status, :description, :failure_reason, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, tx); err != nil {
		if pqCode(err) == uniqueViolation {
			return fmt.Errorf("create transaction %s: %w", tx.ID, repository.ErrDuplicate)
		}
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var tx models.Transaction
	err := sqlx.GetContext(ctx, r.q, &tx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		if nf := notFound(err, "transaction"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &tx, nil
}

func (r *transactionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`

	txs := make([]models.Transaction, 0)
	if err := sqlx.SelectContext(ctx, r.q, &txs, query, ownerID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (r *transactionRepo) ListSucceededByWallet(ctx context.Context, walletID string, ownerID uuid.UUID, limit int) ([]models.Transaction, error) {
	const query = `SELECT ` + transactionColumns + ` FROM transactions
		WHERE (sender = $1 OR receiver = $1) AND owner_id = $2 AND status = $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4`

	txs := make([]models.Transaction, 0)
	err := sqlx.SelectContext(ctx, r.q, &txs, query, walletID, ownerID, models.TransactionSucceeded, limit)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return txs, nil
}
