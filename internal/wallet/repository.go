package wallet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the wallet does not exist.
var ErrNotFound = errors.New("wallet not found")

// Repository persists wallet metadata. Balances are owned by the ledger
// engine; repositories only read them back.
type Repository interface {
	Create(ctx context.Context, w Wallet) error
	Get(ctx context.Context, id string) (Wallet, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Wallet, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// PostgresRepository stores wallets in PostgreSQL, in the same table the
// ledger engine locks for balance mutation.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a wallet record with a zero balance.
func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO wallets (id, owner_id, workspace_id, name, type, currency, balance, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $8)`,
		w.ID, nullable(w.OwnerID), nullable(w.WorkspaceID), w.Name, string(w.Type), w.Currency, w.Active, w.CreatedAt.UTC())
	return err
}

// Get fetches a wallet by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Wallet, error) {
	row := r.db.QueryRow(ctx, walletQuery+` WHERE id = $1`, id)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrNotFound
	}
	return w, err
}

// ListByOwner returns the personal wallets of one principal.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	return r.list(ctx, walletQuery+` WHERE owner_id = $1 ORDER BY created_at`, ownerID)
}

// ListByWorkspace returns the business wallets of one workspace.
func (r *PostgresRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]Wallet, error) {
	return r.list(ctx, walletQuery+` WHERE workspace_id = $1 ORDER BY created_at`, workspaceID)
}

// SetActive flips the soft-deactivation flag.
func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE wallets SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const walletQuery = `
        SELECT id, COALESCE(owner_id, ''), COALESCE(workspace_id, ''), name, type,
               currency, balance::text, is_active, created_at, updated_at
        FROM wallets`

func (r *PostgresRepository) list(ctx context.Context, query string, arg any) ([]Wallet, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var typ, balanceText string
	if err := row.Scan(&w.ID, &w.OwnerID, &w.WorkspaceID, &w.Name, &typ,
		&w.Currency, &balanceText, &w.Active, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return Wallet{}, err
	}
	w.Type = Type(typ)
	w.Balance = balance
	w.CreatedAt = w.CreatedAt.UTC()
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
