package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrRunNotFound is returned when a payroll run does not exist.
var ErrRunNotFound = errors.New("payroll run not found")

// ErrItemNotFound is returned when a payroll item does not exist.
var ErrItemNotFound = errors.New("payroll item not found")

// Repository persists payroll runs and their items. ClaimDraft is the
// compare-and-set that makes the draft to paid transition one-way: exactly
// one caller wins it, everyone else gets ErrRunNotDraft.
type Repository interface {
	CreateRun(ctx context.Context, run Run, items []Item) error
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, workspaceID string) ([]Run, error)
	ItemsByRun(ctx context.Context, runID string) ([]Item, error)
	UpdateItemNet(ctx context.Context, runID, itemID string, net decimal.Decimal) error
	ClaimDraft(ctx context.Context, runID string, paidAt time.Time) error
	ReleaseClaim(ctx context.Context, runID string) error
	MarkItemsPaid(ctx context.Context, runID string, transactionIDs map[string]string) error
}

// PostgresRepository stores runs in the payroll_runs and payroll_items tables.
type PostgresRepository struct {
	db *pgxpool.Pool
}

func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateRun(ctx context.Context, run Run, items []Item) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
        INSERT INTO payroll_runs (id, workspace_id, period_start, period_end, status, currency, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.WorkspaceID, run.PeriodStart, run.PeriodEnd, string(run.Status), run.Currency, run.CreatedBy, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payroll run: %w", err)
	}

	for _, item := range items {
		_, err = tx.Exec(ctx, `
            INSERT INTO payroll_items (id, run_id, employee_id, days, hours, gross_amount, net_amount, paid)
            VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8)`,
			item.ID, item.RunID, item.EmployeeID, item.Days,
			item.Hours.String(), item.GrossAmount.String(), item.NetAmount.String(), item.Paid,
		)
		if err != nil {
			return fmt.Errorf("insert payroll item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}
	return nil
}

const runQuery = `
    SELECT id, workspace_id, period_start, period_end, status, currency, created_by, created_at, paid_at
    FROM payroll_runs`

func (r *PostgresRepository) GetRun(ctx context.Context, runID string) (Run, error) {
	row := r.db.QueryRow(ctx, runQuery+` WHERE id = $1`, runID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get payroll run: %w", err)
	}
	return run, nil
}

func (r *PostgresRepository) ListRuns(ctx context.Context, workspaceID string) ([]Run, error) {
	rows, err := r.db.Query(ctx, runQuery+` WHERE workspace_id = $1 ORDER BY created_at DESC`, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list payroll runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepository) ItemsByRun(ctx context.Context, runID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, run_id, employee_id, days, hours::text, gross_amount::text, net_amount::text,
               COALESCE(transaction_id, ''), paid
        FROM payroll_items
        WHERE run_id = $1
        ORDER BY employee_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list payroll items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			it                Item
			hours, gross, net string
		)
		if err := rows.Scan(&it.ID, &it.RunID, &it.EmployeeID, &it.Days, &hours, &gross, &net, &it.TransactionID, &it.Paid); err != nil {
			return nil, fmt.Errorf("scan payroll item: %w", err)
		}
		if it.Hours, err = decimal.NewFromString(hours); err != nil {
			return nil, fmt.Errorf("parse hours: %w", err)
		}
		if it.GrossAmount, err = decimal.NewFromString(gross); err != nil {
			return nil, fmt.Errorf("parse gross: %w", err)
		}
		if it.NetAmount, err = decimal.NewFromString(net); err != nil {
			return nil, fmt.Errorf("parse net: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateItemNet adjusts one payout line. The draft check and the update run
// in one statement so an edit cannot land on a run that is being settled.
func (r *PostgresRepository) UpdateItemNet(ctx context.Context, runID, itemID string, net decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE payroll_items SET net_amount = $3::numeric
        WHERE id = $2 AND run_id = $1
          AND EXISTS (SELECT 1 FROM payroll_runs WHERE id = $1 AND status = $4)`,
		runID, itemID, net.String(), string(StatusDraft))
	if err != nil {
		return fmt.Errorf("update payroll item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainRejectedUpdate(ctx, runID)
	}
	return nil
}

// ClaimDraft flips the run to paid only if it is still a draft. Zero rows
// affected means another settlement won the race, or the run is gone.
func (r *PostgresRepository) ClaimDraft(ctx context.Context, runID string, paidAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE payroll_runs SET status = $2, paid_at = $3 WHERE id = $1 AND status = $4`,
		runID, string(StatusPaid), paidAt, string(StatusDraft))
	if err != nil {
		return fmt.Errorf("claim payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainRejectedUpdate(ctx, runID)
	}
	return nil
}

// ReleaseClaim returns a claimed run to draft after a failed settlement.
func (r *PostgresRepository) ReleaseClaim(ctx context.Context, runID string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE payroll_runs SET status = $2, paid_at = NULL WHERE id = $1 AND status = $3`,
		runID, string(StatusDraft), string(StatusPaid))
	if err != nil {
		return fmt.Errorf("release payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *PostgresRepository) MarkItemsPaid(ctx context.Context, runID string, transactionIDs map[string]string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mark items paid: %w", err)
	}
	defer tx.Rollback(ctx)

	for itemID, txID := range transactionIDs {
		_, err = tx.Exec(ctx, `
            UPDATE payroll_items SET paid = TRUE, transaction_id = $3 WHERE id = $2 AND run_id = $1`,
			runID, itemID, txID,
		)
		if err != nil {
			return fmt.Errorf("mark item paid: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit mark items paid: %w", err)
	}
	return nil
}

// explainRejectedUpdate turns a zero-row conditional update into the right
// sentinel: missing run, settled run, or missing item.
func (r *PostgresRepository) explainRejectedUpdate(ctx context.Context, runID string) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM payroll_runs WHERE id = $1`, runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect payroll run: %w", err)
	}
	if RunStatus(status) != StatusDraft {
		return ErrRunNotDraft
	}
	return ErrItemNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run    Run
		status string
	)
	if err := row.Scan(&run.ID, &run.WorkspaceID, &run.PeriodStart, &run.PeriodEnd, &status,
		&run.Currency, &run.CreatedBy, &run.CreatedAt, &run.PaidAt); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	return run, nil
}
