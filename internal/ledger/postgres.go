package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// lockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const lockNotAvailable = "55P03"

// PostgresLedger persists the transaction log and wallet balances in
// PostgreSQL. Wallet rows are locked with SELECT ... FOR UPDATE for the
// duration of each operation; project budgets, which have no row of their
// own, are guarded by transaction-scoped advisory locks.
type PostgresLedger struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresLedger constructs a Postgres-backed ledger. A zero lockTimeout
// falls back to DefaultLockTimeout.
func NewPostgresLedger(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresLedger {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &PostgresLedger{db: db, lockTimeout: lockTimeout}
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type lockedWallet struct {
	ref     WalletRef
	balance decimal.Decimal
}

// EnsureWallet verifies the wallet row exists. Creation itself belongs to the
// wallet repository, which writes into the same table.
func (l *PostgresLedger) EnsureWallet(ctx context.Context, ref WalletRef) error {
	var one int
	err := l.db.QueryRow(ctx, `SELECT 1 FROM wallets WHERE id = $1`, ref.ID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrWalletNotFound
	}
	return err
}

// DeactivateWallet soft-deactivates the wallet. Log entries referencing it
// are kept forever, so wallets are never deleted.
func (l *PostgresLedger) DeactivateWallet(ctx context.Context, walletID string) error {
	tag, err := l.db.Exec(ctx, `UPDATE wallets SET is_active = FALSE, updated_at = now() WHERE id = $1`, walletID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// WalletBalance returns the materialized balance column.
func (l *PostgresLedger) WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	var text string
	err := l.db.QueryRow(ctx, `SELECT balance::text FROM wallets WHERE id = $1`, walletID).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(text)
}

// Reconcile recomputes the balance from completed log entries under the
// wallet lock and stores the result.
func (l *PostgresLedger) Reconcile(ctx context.Context, walletID string) (decimal.Decimal, error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := l.lockWallet(ctx, tx, walletID); err != nil && !errors.Is(err, ErrWalletInactive) {
		return decimal.Decimal{}, err
	}

	const query = `
        SELECT COALESCE(SUM(CASE WHEN destination_wallet_id = $1 THEN amount ELSE -amount END), 0)::text
        FROM transactions
        WHERE status = 'completed' AND (source_wallet_id = $1 OR destination_wallet_id = $1)`
	var text string
	if err := tx.QueryRow(ctx, query, walletID).Scan(&text); err != nil {
		return decimal.Decimal{}, translateLockErr(err)
	}
	balance, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := l.setBalance(ctx, tx, walletID, balance); err != nil {
		return decimal.Decimal{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return decimal.Decimal{}, err
	}
	return balance, nil
}

func (l *PostgresLedger) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	w, err := l.lockWallet(ctx, tx, in.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	record := Transaction{
		ID:                  uuid.NewString(),
		Kind:                KindDeposit,
		Status:              statusOrCompleted(in.Status),
		Amount:              amount,
		Currency:            w.ref.Currency,
		Description:         in.Description,
		DestinationWalletID: w.ref.ID,
		ProjectID:           in.ProjectID,
		WorkItemID:          in.WorkItemID,
		CategoryID:          in.CategoryID,
		WorkspaceID:         in.WorkspaceID,
		CreatedBy:           in.CreatedBy,
		CreatedAt:           time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}
	if record.Status == StatusCompleted {
		if err := l.setBalance(ctx, tx, w.ref.ID, w.balance.Add(amount)); err != nil {
			return Transaction{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

func (l *PostgresLedger) Spend(ctx context.Context, in SpendInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	currency := in.Currency
	var locked *lockedWallet
	if in.WalletID != "" {
		w, err := l.lockWallet(ctx, tx, in.WalletID)
		if err != nil {
			return Transaction{}, err
		}
		if currency != "" && currency != w.ref.Currency {
			return Transaction{}, ErrCurrencyMismatch
		}
		currency = w.ref.Currency
		locked = w
	} else if currency == "" {
		currency = DefaultCurrency
	}

	record := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindSpend,
		Status:      statusOrCompleted(in.Status),
		Amount:      amount,
		Currency:    currency,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		TimeLogID:   in.TimeLogID,
		CategoryID:  in.CategoryID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if locked != nil {
		record.SourceWalletID = locked.ref.ID
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}
	if locked != nil && record.Status == StatusCompleted {
		next := locked.balance.Sub(amount)
		if next.IsNegative() && !in.AllowOverdraft {
			return Transaction{}, ErrInsufficientFunds
		}
		if err := l.setBalance(ctx, tx, locked.ref.ID, next); err != nil {
			return Transaction{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

func (l *PostgresLedger) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return TransferResult{}, err
	}
	if in.FromWalletID == in.ToWalletID {
		return TransferResult{}, ErrSameWallet
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	wallets, err := l.lockWallets(ctx, tx, []string{in.FromWalletID, in.ToWalletID})
	if err != nil {
		return TransferResult{}, err
	}
	from, to := wallets[in.FromWalletID], wallets[in.ToWalletID]

	inbound, err := inboundAmount(from.ref, to.ref, amount, in.TargetAmount)
	if err != nil {
		return TransferResult{}, err
	}
	nextFrom := from.balance.Sub(amount)
	if nextFrom.IsNegative() && !in.AllowOverdraft {
		return TransferResult{}, ErrInsufficientFunds
	}

	res, err := l.postTransfer(ctx, tx, from, to, amount, inbound, in.Description, transferMeta{
		CategoryID:            in.CategoryID,
		DestinationCategoryID: in.DestinationCategoryID,
		ProjectID:             in.ProjectID,
		WorkItemID:            in.WorkItemID,
		WorkspaceID:           in.WorkspaceID,
		CreatedBy:             in.CreatedBy,
	})
	if err != nil {
		return TransferResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}
	return res, nil
}

func (l *PostgresLedger) TransferBatch(ctx context.Context, in BatchTransferInput) ([]TransferResult, error) {
	if len(in.Legs) == 0 {
		return nil, nil
	}
	total := decimal.Zero
	ids := []string{in.FromWalletID}
	for _, leg := range in.Legs {
		amount, err := normalizeAmount(leg.Amount)
		if err != nil {
			return nil, err
		}
		if leg.ToWalletID == in.FromWalletID {
			return nil, ErrSameWallet
		}
		ids = append(ids, leg.ToWalletID)
		total = total.Add(amount)
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	wallets, err := l.lockWallets(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	from := wallets[in.FromWalletID]

	if from.balance.Sub(total).IsNegative() && !in.AllowOverdraft {
		return nil, ErrInsufficientFunds
	}

	results := make([]TransferResult, 0, len(in.Legs))
	for _, leg := range in.Legs {
		dest := wallets[leg.ToWalletID]
		inbound, err := inboundAmount(from.ref, dest.ref, leg.Amount, leg.TargetAmount)
		if err != nil {
			return nil, err
		}
		res, err := l.postTransfer(ctx, tx, from, dest, leg.Amount, inbound, leg.Description, transferMeta{
			CategoryID:  leg.CategoryID,
			WorkspaceID: in.WorkspaceID,
			CreatedBy:   in.CreatedBy,
		})
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (l *PostgresLedger) Hold(ctx context.Context, in HoldInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := l.lockProject(ctx, tx, in.ProjectID); err != nil {
		return Transaction{}, err
	}
	balance, err := projectBalanceQuery(ctx, tx, in.ProjectID)
	if err != nil {
		return Transaction{}, err
	}
	if balance.Available.LessThan(amount) {
		return Transaction{}, ErrInsufficientFunds
	}

	record := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindHold,
		Status:      StatusCompleted,
		Amount:      amount,
		Currency:    currencyOrDefault(in.Currency),
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return record, nil
}

func (l *PostgresLedger) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	actual, err := normalizeAmount(in.ActualAmount)
	if err != nil {
		return CommitResult{}, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := l.lockProject(ctx, tx, in.ProjectID); err != nil {
		return CommitResult{}, err
	}

	const sums = `
        SELECT
            COALESCE(SUM(amount) FILTER (WHERE kind = 'hold'), 0)::text,
            COALESCE(SUM(amount) FILTER (WHERE kind = 'release'), 0)::text
        FROM transactions
        WHERE work_item_id = $1 AND status = 'completed' AND kind IN ('hold', 'release')`
	var heldText, releasedText string
	if err := tx.QueryRow(ctx, sums, in.WorkItemID).Scan(&heldText, &releasedText); err != nil {
		return CommitResult{}, translateLockErr(err)
	}
	held, err := decimal.NewFromString(heldText)
	if err != nil {
		return CommitResult{}, err
	}
	released, err := decimal.NewFromString(releasedText)
	if err != nil {
		return CommitResult{}, err
	}
	outstanding := held.Sub(released)

	if in.TimeLogID != "" {
		var billed bool
		const q = `SELECT EXISTS (SELECT 1 FROM transactions WHERE kind = 'spend' AND time_log_id = $1)`
		if err := tx.QueryRow(ctx, q, in.TimeLogID).Scan(&billed); err != nil {
			return CommitResult{}, err
		}
		if billed {
			return CommitResult{}, ErrAlreadySettled
		}
	}
	if held.IsPositive() && !outstanding.IsPositive() {
		return CommitResult{}, ErrAlreadySettled
	}

	now := time.Now().UTC()
	currency := currencyOrDefault(in.Currency)
	result := CommitResult{}

	if outstanding.IsPositive() {
		releaseTx := Transaction{
			ID:          uuid.NewString(),
			Kind:        KindRelease,
			Status:      StatusCompleted,
			Amount:      outstanding,
			Currency:    currency,
			Description: in.Description,
			ProjectID:   in.ProjectID,
			WorkItemID:  in.WorkItemID,
			WorkspaceID: in.WorkspaceID,
			CreatedBy:   in.CreatedBy,
			CreatedAt:   now,
		}
		if err := insertTransaction(ctx, tx, releaseTx); err != nil {
			return CommitResult{}, err
		}
		result.Release = &releaseTx
	}

	if !in.AllowOverdraft {
		balance, err := projectBalanceQuery(ctx, tx, in.ProjectID)
		if err != nil {
			return CommitResult{}, err
		}
		if balance.Available.LessThan(actual) {
			// Rolling back the enclosing transaction discards the release too.
			return CommitResult{}, ErrInsufficientFunds
		}
	}

	spendTx := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindSpend,
		Status:      StatusCompleted,
		Amount:      actual,
		Currency:    currency,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		TimeLogID:   in.TimeLogID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}
	if err := insertTransaction(ctx, tx, spendTx); err != nil {
		return CommitResult{}, err
	}
	result.Spend = spendTx

	if err := tx.Commit(ctx); err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

func (l *PostgresLedger) ProjectBalance(ctx context.Context, projectID string) (ProjectBalance, error) {
	return projectBalanceQuery(ctx, l.db, projectID)
}

func (l *PostgresLedger) Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.WalletID != "" {
		p := arg(filter.WalletID)
		where = append(where, fmt.Sprintf("(source_wallet_id = %s OR destination_wallet_id = %s)", p, p))
	}
	if filter.ProjectID != "" {
		where = append(where, "project_id = "+arg(filter.ProjectID))
	}
	if filter.WorkItemID != "" {
		where = append(where, "work_item_id = "+arg(filter.WorkItemID))
	}
	if filter.Kind != "" {
		where = append(where, "kind = "+arg(string(filter.Kind)))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	query := `
        SELECT id, kind, status, amount::text, currency,
               COALESCE(description, ''),
               COALESCE(source_wallet_id, ''), COALESCE(destination_wallet_id, ''),
               COALESCE(project_id, ''), COALESCE(work_item_id, ''),
               COALESCE(time_log_id, ''), COALESCE(category_id, ''),
               COALESCE(workspace_id, ''), COALESCE(transfer_group_id, ''),
               created_by, created_at
        FROM transactions
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var kind, status, amountText string
		if err := rows.Scan(&t.ID, &kind, &status, &amountText, &t.Currency,
			&t.Description, &t.SourceWalletID, &t.DestinationWalletID,
			&t.ProjectID, &t.WorkItemID, &t.TimeLogID, &t.CategoryID,
			&t.WorkspaceID, &t.TransferGroupID, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amountText); err != nil {
			return nil, err
		}
		t.Kind, t.Status = Kind(kind), Status(status)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// begin opens a transaction and bounds every lock wait inside it.
func (l *PostgresLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, stmt); err != nil {
		tx.Rollback(ctx) // nolint:errcheck
		return nil, err
	}
	return tx, nil
}

// lockWallet takes an exclusive row lock on the wallet and returns its
// currency and current balance as of the lock.
func (l *PostgresLedger) lockWallet(ctx context.Context, tx pgx.Tx, walletID string) (*lockedWallet, error) {
	const query = `SELECT currency, balance::text, is_active FROM wallets WHERE id = $1 FOR UPDATE`
	var currency, balanceText string
	var active bool
	if err := tx.QueryRow(ctx, query, walletID).Scan(&currency, &balanceText, &active); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, translateLockErr(err)
	}
	if !active {
		return nil, ErrWalletInactive
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, err
	}
	return &lockedWallet{ref: WalletRef{ID: walletID, Currency: currency, Active: active}, balance: balance}, nil
}

// lockWallets locks a set of wallets one by one in ascending id order, the
// fixed global order that keeps concurrent multi-wallet operations off each
// other's toes.
func (l *PostgresLedger) lockWallets(ctx context.Context, tx pgx.Tx, ids []string) (map[string]*lockedWallet, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	out := make(map[string]*lockedWallet, len(unique))
	for _, id := range unique {
		w, err := l.lockWallet(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

// lockProject serializes budget checks for a project. Projects live in a
// table the ledger does not own, so the lock is an advisory one keyed by the
// project id and held until the transaction ends.
func (l *PostgresLedger) lockProject(ctx context.Context, tx pgx.Tx, projectID string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, projectID); err != nil {
		return translateLockErr(err)
	}
	return nil
}

func (l *PostgresLedger) setBalance(ctx context.Context, tx pgx.Tx, walletID string, balance decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2::numeric, updated_at = now() WHERE id = $1`,
		walletID, balance.String())
	return err
}

func (l *PostgresLedger) postTransfer(ctx context.Context, tx pgx.Tx, from, to *lockedWallet, amount, inbound decimal.Decimal, description string, meta transferMeta) (TransferResult, error) {
	groupID := uuid.NewString()
	now := time.Now().UTC()

	outTx := Transaction{
		ID:              uuid.NewString(),
		Kind:            KindTransfer,
		Status:          StatusCompleted,
		Amount:          amount,
		Currency:        from.ref.Currency,
		Description:     description,
		SourceWalletID:  from.ref.ID,
		ProjectID:       meta.ProjectID,
		WorkItemID:      meta.WorkItemID,
		CategoryID:      meta.CategoryID,
		WorkspaceID:     meta.WorkspaceID,
		TransferGroupID: groupID,
		CreatedBy:       meta.CreatedBy,
		CreatedAt:       now,
	}
	inCategory := meta.DestinationCategoryID
	if inCategory == "" {
		inCategory = meta.CategoryID
	}
	inTx := Transaction{
		ID:                  uuid.NewString(),
		Kind:                KindTransfer,
		Status:              StatusCompleted,
		Amount:              inbound,
		Currency:            to.ref.Currency,
		Description:         description,
		DestinationWalletID: to.ref.ID,
		ProjectID:           meta.ProjectID,
		WorkItemID:          meta.WorkItemID,
		CategoryID:          inCategory,
		WorkspaceID:         meta.WorkspaceID,
		TransferGroupID:     groupID,
		CreatedBy:           meta.CreatedBy,
		CreatedAt:           now,
	}

	if err := insertTransaction(ctx, tx, outTx); err != nil {
		return TransferResult{}, err
	}
	if err := insertTransaction(ctx, tx, inTx); err != nil {
		return TransferResult{}, err
	}

	from.balance = from.balance.Sub(amount)
	to.balance = to.balance.Add(inbound)
	if err := l.setBalance(ctx, tx, from.ref.ID, from.balance); err != nil {
		return TransferResult{}, err
	}
	if err := l.setBalance(ctx, tx, to.ref.ID, to.balance); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{Outbound: outTx, Inbound: inTx, FromBalance: from.balance, ToBalance: to.balance}, nil
}

func projectBalanceQuery(ctx context.Context, q queryRower, projectID string) (ProjectBalance, error) {
	const query = `
        SELECT
            COALESCE(SUM(amount) FILTER (WHERE kind = 'deposit'), 0)::text,
            COALESCE(SUM(amount) FILTER (WHERE kind = 'spend'), 0)::text,
            COALESCE(SUM(amount) FILTER (WHERE kind = 'hold'), 0)::text,
            COALESCE(SUM(amount) FILTER (WHERE kind = 'release'), 0)::text
        FROM transactions
        WHERE project_id = $1 AND status = 'completed'`
	var depositedText, spentText, heldText, releasedText string
	if err := q.QueryRow(ctx, query, projectID).Scan(&depositedText, &spentText, &heldText, &releasedText); err != nil {
		return ProjectBalance{}, translateLockErr(err)
	}
	deposited, err := decimal.NewFromString(depositedText)
	if err != nil {
		return ProjectBalance{}, err
	}
	spent, err := decimal.NewFromString(spentText)
	if err != nil {
		return ProjectBalance{}, err
	}
	held, err := decimal.NewFromString(heldText)
	if err != nil {
		return ProjectBalance{}, err
	}
	released, err := decimal.NewFromString(releasedText)
	if err != nil {
		return ProjectBalance{}, err
	}
	onHold := held.Sub(released)
	return ProjectBalance{
		ProjectID: projectID,
		Deposited: deposited,
		Spent:     spent,
		Held:      held,
		Released:  released,
		OnHold:    onHold,
		Available: deposited.Sub(spent).Sub(onHold),
	}, nil
}

// insertTransaction writes one immutable log row. There is deliberately no
// update or delete counterpart anywhere in this package, and the schema
// backs that up with a trigger that rejects both.
func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	const query = `
        INSERT INTO transactions (
            id, kind, status, amount, currency, description,
            source_wallet_id, destination_wallet_id, project_id, work_item_id,
            time_log_id, category_id, workspace_id, transfer_group_id,
            created_by, created_at
        ) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := tx.Exec(ctx, query,
		t.ID, string(t.Kind), string(t.Status), t.Amount.String(), t.Currency, t.Description,
		nullable(t.SourceWalletID), nullable(t.DestinationWalletID), nullable(t.ProjectID), nullable(t.WorkItemID),
		nullable(t.TimeLogID), nullable(t.CategoryID), nullable(t.WorkspaceID), nullable(t.TransferGroupID),
		t.CreatedBy, t.CreatedAt)
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// translateLockErr maps a lock_timeout expiry to the retryable contention
// error; everything else passes through untouched.
func translateLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return ErrContention
	}
	return err
}
