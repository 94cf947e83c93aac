package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
)

var ErrNegativeBalance = errors.New("wallet balance must not be negative")

type walletRow struct {
	seq    int64
	wallet models.Wallet
}

type transactionRow struct {
	seq int64
	tx  models.Transaction
}

type subscriptionRow struct {
	seq int64
	sub models.Subscription
}

type state struct {
	seq           int64
	users         map[uuid.UUID]models.User
	wallets       map[uuid.UUID]walletRow
	transactions  []transactionRow
	subscriptions map[uuid.UUID]subscriptionRow
}

func (s *state) clone() *state {
	c := &state{
		seq:           s.seq,
		users:         make(map[uuid.UUID]models.User, len(s.users)),
		wallets:       make(map[uuid.UUID]walletRow, len(s.wallets)),
		transactions:  make([]transactionRow, len(s.transactions)),
		subscriptions: make(map[uuid.UUID]subscriptionRow, len(s.subscriptions)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	copy(c.transactions, s.transactions)
	for k, v := range s.subscriptions {
		c.subscriptions[k] = v
	}
	return c
}

// Store is a concurrency-safe in-memory repository.Store for unit tests.
// Units of work run one at a time and are rolled back from a snapshot on error.
type Store struct {
	txMu sync.Mutex

	mu   sync.RWMutex
	data *state
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: &state{
		users:         make(map[uuid.UUID]models.User),
		wallets:       make(map[uuid.UUID]walletRow),
		subscriptions: make(map[uuid.UUID]subscriptionRow),
	}}
}

func (s *Store) Wallets() repository.WalletRepository {
	return &walletRepo{s: s}
}

func (s *Store) Transactions() repository.TransactionRepository {
	return &transactionRepo{s: s}
}

func (s *Store) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepo{s: s}
}

func (s *Store) Users() repository.UserRepository {
	return &userRepo{s: s}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
		if err != nil {
			s.restore(snapshot)
		}
	}()

	return fn(ctx, s)
}

func (s *Store) restore(snapshot *state) {
	s.mu.Lock()
	s.data = snapshot
	s.mu.Unlock()
}

func (s *Store) nextSeq() int64 {
	s.data.seq++
	return s.data.seq
}
