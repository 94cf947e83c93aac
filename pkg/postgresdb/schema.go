package postgresdb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	username   VARCHAR(64) NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	id         UUID PRIMARY KEY,
	owner_id   UUID NOT NULL REFERENCES users (id),
	balance    NUMERIC(19, 2) NOT NULL CHECK (balance >= 0),
	currency   CHAR(3) NOT NULL,
	status     VARCHAR(16) NOT NULL CHECK (status IN ('ACTIVE', 'INACTIVE')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets (owner_id, created_at, id);

CREATE TABLE IF NOT EXISTS transactions (
	id             UUID PRIMARY KEY,
	owner_id       UUID NOT NULL REFERENCES users (id),
	sender         VARCHAR(255) NOT NULL,
	receiver       VARCHAR(255) NOT NULL,
	amount         NUMERIC(19, 2) NOT NULL CHECK (amount >= 0),
	balance_left   NUMERIC(19, 2) NOT NULL,
	currency       CHAR(3) NOT NULL,
	type           VARCHAR(16) NOT NULL CHECK (type IN ('DEPOSIT', 'WITHDRAWAL')),
	status         VARCHAR(16) NOT NULL CHECK (status IN ('SUCCEEDED', 'FAILED')),
	description    TEXT NOT NULL,
	failure_reason TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK ((status = 'FAILED') = (failure_reason IS NOT NULL))
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_created ON transactions (owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_sender ON transactions (sender);
CREATE INDEX IF NOT EXISTS idx_transactions_receiver ON transactions (receiver);

CREATE TABLE IF NOT EXISTS subscriptions (
	id              UUID PRIMARY KEY,
	owner_id        UUID NOT NULL REFERENCES users (id),
	status          VARCHAR(16) NOT NULL CHECK (status IN ('ACTIVE', 'COMPLETED')),
	period          VARCHAR(16) NOT NULL CHECK (period IN ('MONTHLY', 'YEARLY')),
	tier            VARCHAR(16) NOT NULL CHECK (tier IN ('DEFAULT', 'PREMIUM', 'ULTIMATE')),
	price           NUMERIC(19, 2) NOT NULL,
	renewal_allowed BOOLEAN NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_one_active
	ON subscriptions (owner_id) WHERE status = 'ACTIVE';
`

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
