package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
)

type walletRepo struct{ s *Store }

func (r *walletRepo) Create(_ context.Context, wallet *models.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.wallets[wallet.ID]; exists {
		return repository.ErrDuplicate
	}
	if wallet.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	r.s.data.wallets[wallet.ID] = walletRow{seq: r.s.nextSeq(), wallet: *wallet}
	return nil
}

func (r *walletRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.s.data.wallets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	w := row.wallet
	return &w, nil
}

// GetByIDForUpdate needs no lock: units of work are already serialized.
func (r *walletRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *walletRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.collect(func(w models.Wallet) bool { return w.OwnerID == ownerID }), nil
}

func (r *walletRepo) ListActiveByOwnerUsername(_ context.Context, username string) ([]models.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ownerID uuid.UUID
	found := false
	for _, u := range r.s.data.users {
		if u.Username == username {
			ownerID, found = u.ID, true
			break
		}
	}
	if !found {
		return nil, nil
	}
	return r.collect(func(w models.Wallet) bool {
		return w.OwnerID == ownerID && w.Status == models.WalletActive
	}), nil
}

// collect returns matching wallets oldest first. Caller holds the read lock.
func (r *walletRepo) collect(match func(models.Wallet) bool) []models.Wallet {
	rows := make([]walletRow, 0)
	for _, row := range r.s.data.wallets {
		if match(row.wallet) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	wallets := make([]models.Wallet, 0, len(rows))
	for _, row := range rows {
		wallets = append(wallets, row.wallet)
	}
	return wallets
}

func (r *walletRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	wallets, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return len(wallets), nil
}

func (r *walletRepo) Update(_ context.Context, wallet *models.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.data.wallets[wallet.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if wallet.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	row.wallet.Balance = wallet.Balance
	row.wallet.Status = wallet.Status
	row.wallet.UpdatedAt = wallet.UpdatedAt
	r.s.data.wallets[wallet.ID] = row
	return nil
}

type transactionRepo struct{ s *Store }

func (r *transactionRepo) Create(_ context.Context, tx *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, row := range r.s.data.transactions {
		if row.tx.ID == tx.ID {
			return repository.ErrDuplicate
		}
	}
	r.s.data.transactions = append(r.s.data.transactions, transactionRow{seq: r.s.nextSeq(), tx: *tx})
	return nil
}

func (r *transactionRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.data.transactions {
		if row.tx.ID == id {
			tx := row.tx
			return &tx, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *transactionRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.newestFirst(func(tx models.Transaction) bool { return tx.OwnerID == ownerID }, 0), nil
}

func (r *transactionRepo) ListSucceededByWallet(_ context.Context, walletID string, ownerID uuid.UUID, limit int) ([]models.Transaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.newestFirst(func(tx models.Transaction) bool {
		return tx.OwnerID == ownerID &&
			tx.Status == models.TransactionSucceeded &&
			(tx.Sender == walletID || tx.Receiver == walletID)
	}, limit), nil
}

// newestFirst orders by creation time, ties by insertion order. limit <= 0 means all.
func (r *transactionRepo) newestFirst(match func(models.Transaction) bool, limit int) []models.Transaction {
	rows := make([]transactionRow, 0)
	for _, row := range r.s.data.transactions {
		if match(row.tx) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].tx.CreatedAt.Equal(rows[j].tx.CreatedAt) {
			return rows[i].tx.CreatedAt.After(rows[j].tx.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	txs := make([]models.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.tx)
	}
	return txs
}

type subscriptionRepo struct{ s *Store }

func (r *subscriptionRepo) Create(_ context.Context, sub *models.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.data.subscriptions[sub.ID]; exists {
		return repository.ErrDuplicate
	}
	if sub.Status == models.SubscriptionActive {
		for _, row := range r.s.data.subscriptions {
			if row.sub.OwnerID == sub.OwnerID && row.sub.Status == models.SubscriptionActive {
				return repository.ErrDuplicate
			}
		}
	}
	r.s.data.subscriptions[sub.ID] = subscriptionRow{seq: r.s.nextSeq(), sub: *sub}
	return nil
}

func (r *subscriptionRepo) GetActiveByOwner(_ context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, row := range r.s.data.subscriptions {
		if row.sub.OwnerID == ownerID && row.sub.Status == models.SubscriptionActive {
			sub := row.sub
			return &sub, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *subscriptionRepo) GetActiveByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	return r.GetActiveByOwner(ctx, ownerID)
}

func (r *subscriptionRepo) Complete(_ context.Context, id uuid.UUID, completedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	row, ok := r.s.data.subscriptions[id]
	if !ok || row.sub.Status != models.SubscriptionActive {
		return repository.ErrNotFound
	}
	row.sub.Status = models.SubscriptionCompleted
	row.sub.CompletedAt = completedAt
	r.s.data.subscriptions[id] = row
	return nil
}

func (r *subscriptionRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]models.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := make([]subscriptionRow, 0)
	for _, row := range r.s.data.subscriptions {
		if row.sub.OwnerID == ownerID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })

	subs := make([]models.Subscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, row.sub)
	}
	return subs, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.data.users {
		if u.ID == user.ID || u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.data.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}
