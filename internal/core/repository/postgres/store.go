package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// repos binds every repository to one executor: the pool or an open tx.
type repos struct {
	q   sqlx.ExtContext
	log logger.Logger
}

func (r *repos) Wallets() repository.WalletRepository {
	return &walletRepo{q: r.q, log: r.log}
}

func (r *repos) Transactions() repository.TransactionRepository {
	return &transactionRepo{q: r.q}
}

func (r *repos) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepo{q: r.q}
}

func (r *repos) Users() repository.UserRepository {
	return &userRepo{q: r.q}
}

type Store struct {
	repos
	db *sqlx.DB
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *sqlx.DB, log logger.Logger) *Store {
	return &Store{
		repos: repos{q: db, log: log},
		db:    db,
	}
}

// WithinTx runs fn in a READ COMMITTED transaction. Rows read with the
// ForUpdate methods stay locked until commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	var isCommitted bool
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		s.log.Error("Error beginning transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil && !isCommitted {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("Transaction rollback failed",
					logger.ErrorField("error", rbErr))
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			} else {
				s.log.Debug("Transaction rolled back",
					logger.ErrorField("error", err))
			}
		}
	}()

	if err = fn(ctx, &repos{q: tx, log: s.log}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		s.log.Error("Error committing transaction",
			logger.ErrorField("error", err))
		return fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w: %w", what, repository.ErrNotFound, err)
	}
	return nil
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func requireOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
	}
	return nil
}
