package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/logger"
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const notificationSubject = "Money Transfer"

// Notifier is the best-effort notification side-channel. Implementations must
// not block the caller and never report failures back.
type Notifier interface {
	SendNotification(ownerID uuid.UUID, subject, body string)
	SaveNotificationPreference(ownerID uuid.UUID, enabled bool, contactInfo string)
}

// ActivityCache caches the recent successful transactions of a wallet. Get
// returns a version on a miss and Set only stores if no Invalidate of that
// wallet happened in between.
type ActivityCache interface {
	Get(ctx context.Context, walletID string) (txs []models.Transaction, version int64, hit bool, err error)
	Set(ctx context.Context, walletID string, version int64, txs []models.Transaction) error
	Invalidate(ctx context.Context, walletIDs ...string) error
}

// LedgerObserver is told about every committed transaction record.
type LedgerObserver interface {
	Observe(operation string, tx *models.Transaction)
}

type nopNotifier struct{}

func (nopNotifier) SendNotification(uuid.UUID, string, string) {}

func (nopNotifier) SaveNotificationPreference(uuid.UUID, bool, string) {}

type nopActivityCache struct{}

func (nopActivityCache) Get(context.Context, string) ([]models.Transaction, int64, bool, error) {
	return nil, 0, false, nil
}

func (nopActivityCache) Set(context.Context, string, int64, []models.Transaction) error {
	return nil
}

func (nopActivityCache) Invalidate(context.Context, ...string) error {
	return nil
}

type nopObserver struct{}

func (nopObserver) Observe(string, *models.Transaction) {}

// Collaborators groups the side effects that run after a unit of work commits.
// Nil fields fall back to no-ops.
type Collaborators struct {
	Notifier Notifier
	Cache    ActivityCache
	Observer LedgerObserver
	Now      func() time.Time
}

func (c Collaborators) withDefaults() Collaborators {
	if c.Notifier == nil {
		c.Notifier = nopNotifier{}
	}
	if c.Cache == nil {
		c.Cache = nopActivityCache{}
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type recordParams struct {
	owner       uuid.UUID
	sender      string
	receiver    string
	amount      decimal.Decimal
	balanceLeft decimal.Decimal
	currency    string
	txType      models.TransactionType
	status      models.TransactionStatus
	description string
	reason      string
}

// outbox collects the records written by one unit of work. They are only
// published once the unit has committed.
type outbox struct {
	operation string
	records   []models.Transaction
}

func newOutbox(operation string) *outbox {
	return &outbox{operation: operation}
}

// recorder appends transaction records and publishes them after commit.
type recorder struct {
	deps Collaborators
	log  logger.Logger
}

func newRecorder(deps Collaborators, log logger.Logger) *recorder {
	return &recorder{deps: deps.withDefaults(), log: log}
}

func (r *recorder) now() time.Time {
	return r.deps.Now().UTC()
}

func (r *recorder) record(ctx context.Context, repos repository.Repositories, box *outbox, p recordParams) (*models.Transaction, error) {
	tx := &models.Transaction{
		ID:          uuid.New(),
		OwnerID:     p.owner,
		Sender:      p.sender,
		Receiver:    p.receiver,
		Amount:      p.amount,
		BalanceLeft: p.balanceLeft,
		Currency:    p.currency,
		Type:        p.txType,
		Status:      p.status,
		Description: p.description,
		CreatedAt:   r.now(),
	}
	if p.status == models.TransactionFailed {
		reason := p.reason
		tx.FailureReason = &reason
	}

	if err := repos.Transactions().Create(ctx, tx); err != nil {
		r.log.Error("Transaction record failed",
			logger.ErrorField("error", err),
			logger.StringField("owner_id", p.owner.String()),
			logger.StringField("type", string(p.txType)))
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	box.records = append(box.records, *tx)
	return tx, nil
}

func (r *recorder) publish(ctx context.Context, box *outbox) {
	for i := range box.records {
		tx := &box.records[i]
		r.deps.Observer.Observe(box.operation, tx)

		if tx.Succeeded() {
			if err := r.deps.Cache.Invalidate(ctx, tx.Sender, tx.Receiver); err != nil {
				r.log.Warn("Activity cache invalidation failed",
					logger.ErrorField("error", err),
					logger.StringField("transaction_id", tx.ID.String()))
			}
		}

		r.deps.Notifier.SendNotification(tx.OwnerID, notificationSubject, notificationBody(tx))
	}
}

func notificationBody(tx *models.Transaction) string {
	if tx.Succeeded() {
		return fmt.Sprintf("%s transaction was successfully processed for you with amount %s %s!",
			tx.Type, tx.Amount.StringFixed(models.MoneyScale), tx.Currency)
	}
	return fmt.Sprintf("%s transaction with amount %s %s was declined: %s.",
		tx.Type, tx.Amount.StringFixed(models.MoneyScale), tx.Currency, tx.Reason())
}
