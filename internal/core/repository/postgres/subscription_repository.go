package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/Nzyazin/smartwallet/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `id, owner_id, status, period, tier, price, renewal_allowed, created_at, completed_at`

type subscriptionRepo struct {
	q sqlx.ExtContext
}

// Create relies on the partial unique index to refuse a second ACTIVE row.
func (r *subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	const query = `INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (:id, :owner_id, :status, :period, :tier, :price, :renewal_allowed, :created_at, :completed_at)`

	if _, err := sqlx.NamedExecContext(ctx, r.q, query, sub); err != nil {
		if pqCode(err) == uniqueViolation {
			return fmt.Errorf("create subscription for %s: %w", sub.OwnerID, repository.ErrDuplicate)
		}
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) GetActiveByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	return r.getActive(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE owner_id = $1 AND status = $2`, ownerID)
}

func (r *subscriptionRepo) GetActiveByOwnerForUpdate(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	return r.getActive(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE owner_id = $1 AND status = $2
		FOR UPDATE`, ownerID)
}

func (r *subscriptionRepo) getActive(ctx context.Context, query string, ownerID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := sqlx.GetContext(ctx, r.q, &sub, query, ownerID, models.SubscriptionActive); err != nil {
		if nf := notFound(err, "active subscription"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return &sub, nil
}

func (r *subscriptionRepo) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	const query = `UPDATE subscriptions
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4`

	res, err := r.q.ExecContext(ctx, query, id, models.SubscriptionCompleted, completedAt, models.SubscriptionActive)
	if err != nil {
		return fmt.Errorf("complete subscription: %w", err)
	}
	return requireOneRow(res, "complete subscription")
}

func (r *subscriptionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Subscription, error) {
	const query = `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC`

	subs := make([]models.Subscription, 0)
	if err := sqlx.SelectContext(ctx, r.q, &subs, query, ownerID); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}
