package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds the DDL for the whole service. Statements are idempotent so
// Migrate can run on every start. The transactions table is append-only: a
// trigger rejects UPDATE and DELETE, corrections are posted as new entries.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        id           TEXT PRIMARY KEY,
        owner_id     TEXT,
        workspace_id TEXT,
        name         TEXT NOT NULL,
        type         TEXT NOT NULL DEFAULT 'bank',
        currency     TEXT NOT NULL,
        balance      NUMERIC(20, 2) NOT NULL DEFAULT 0,
        is_active    BOOLEAN NOT NULL DEFAULT TRUE,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        CONSTRAINT wallets_one_owner CHECK ((owner_id IS NULL) <> (workspace_id IS NULL))
    )`,
	`CREATE INDEX IF NOT EXISTS idx_wallets_owner ON wallets (owner_id) WHERE owner_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_wallets_workspace ON wallets (workspace_id) WHERE workspace_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS transactions (
        id                    TEXT PRIMARY KEY,
        kind                  TEXT NOT NULL,
        status                TEXT NOT NULL DEFAULT 'completed',
        amount                NUMERIC(20, 2) NOT NULL CHECK (amount > 0),
        currency              TEXT NOT NULL,
        description           TEXT NOT NULL DEFAULT '',
        source_wallet_id      TEXT REFERENCES wallets (id),
        destination_wallet_id TEXT REFERENCES wallets (id),
        project_id            TEXT,
        work_item_id          TEXT,
        time_log_id           TEXT,
        category_id           TEXT,
        workspace_id          TEXT,
        transfer_group_id     TEXT,
        created_by            TEXT,
        created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions (source_wallet_id) WHERE source_wallet_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_destination ON transactions (destination_wallet_id) WHERE destination_wallet_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_project ON transactions (project_id) WHERE project_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_work_item ON transactions (work_item_id) WHERE work_item_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_group ON transactions (transfer_group_id) WHERE transfer_group_id IS NOT NULL`,

	`CREATE OR REPLACE FUNCTION reject_transaction_mutation() RETURNS TRIGGER AS $$
    BEGIN
        RAISE EXCEPTION 'transactions are append-only';
    END;
    $$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS transactions_append_only ON transactions`,
	`CREATE TRIGGER transactions_append_only
        BEFORE UPDATE OR DELETE ON transactions
        FOR EACH ROW EXECUTE FUNCTION reject_transaction_mutation()`,

	`CREATE TABLE IF NOT EXISTS payroll_runs (
        id           TEXT PRIMARY KEY,
        workspace_id TEXT NOT NULL,
        period_start DATE NOT NULL,
        period_end   DATE NOT NULL,
        status       TEXT NOT NULL DEFAULT 'draft',
        currency     TEXT NOT NULL,
        created_by   TEXT,
        created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        paid_at      TIMESTAMPTZ
    )`,
	`CREATE TABLE IF NOT EXISTS payroll_items (
        id             TEXT PRIMARY KEY,
        run_id         TEXT NOT NULL REFERENCES payroll_runs (id) ON DELETE CASCADE,
        employee_id    TEXT NOT NULL,
        days           INTEGER NOT NULL DEFAULT 0,
        hours          NUMERIC(10, 2) NOT NULL DEFAULT 0,
        gross_amount   NUMERIC(20, 2) NOT NULL DEFAULT 0,
        net_amount     NUMERIC(20, 2) NOT NULL DEFAULT 0,
        transaction_id TEXT REFERENCES transactions (id),
        paid           BOOLEAN NOT NULL DEFAULT FALSE,
        CONSTRAINT payroll_items_one_per_employee UNIQUE (run_id, employee_id)
    )`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
