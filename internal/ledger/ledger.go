package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive a wallet or project
	// balance negative and overdraft was not allowed.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount indicates a non-positive amount. Rejected before any lock is taken.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrCurrencyMismatch indicates the operation currency disagrees with the wallet currency.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrSameWallet indicates a transfer where source and destination are the same wallet.
	ErrSameWallet = errors.New("source and destination wallets must differ")

	// ErrTargetAmountRequired indicates a cross-currency transfer without a destination amount.
	ErrTargetAmountRequired = errors.New("target amount required for cross-currency transfer")

	// ErrWalletNotFound indicates the referenced wallet is unknown to the ledger.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletInactive indicates the referenced wallet has been deactivated.
	ErrWalletInactive = errors.New("wallet is inactive")

	// ErrAlreadySettled indicates the work item's hold was committed before, or the
	// time log backing a spend was already billed. Callers must not retry.
	ErrAlreadySettled = errors.New("work item already settled")

	// ErrContention indicates a lock could not be acquired within the configured
	// timeout. Unlike the errors above it is safe to retry.
	ErrContention = errors.New("ledger lock contention, retry")
)

// DefaultCurrency is applied when neither the caller nor a wallet supplies one.
const DefaultCurrency = "RUB"

// Kind classifies a ledger entry. Direction is encoded by the kind together
// with which wallet side is populated, never by the sign of the amount.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindSpend      Kind = "spend"
	KindTransfer   Kind = "transfer"
	KindHold       Kind = "hold"
	KindRelease    Kind = "release"
	KindAdjustment Kind = "adjustment"
)

// Status is the lifecycle state of a ledger entry. Only completed entries
// contribute to balances.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Transaction is one immutable ledger entry. Once written it is never updated
// or deleted; corrections are new, opposite-direction entries.
type Transaction struct {
	ID                  string
	Kind                Kind
	Status              Status
	Amount              decimal.Decimal
	Currency            string
	Description         string
	SourceWalletID      string
	DestinationWalletID string
	ProjectID           string
	WorkItemID          string
	TimeLogID           string
	CategoryID          string
	WorkspaceID         string
	TransferGroupID     string
	CreatedBy           string
	CreatedAt           time.Time
}

// WalletRef is the slice of wallet state the engine needs: identity, fixed
// currency, and whether the wallet still accepts postings.
type WalletRef struct {
	ID       string
	Currency string
	Active   bool
}

// DepositInput credits a wallet. Deposits are never blocked by balance checks.
type DepositInput struct {
	WalletID    string
	Amount      decimal.Decimal
	Status      Status
	Description string
	ProjectID   string
	WorkItemID  string
	CategoryID  string
	WorkspaceID string
	CreatedBy   string
}

// SpendInput debits a wallet, or records a wallet-less spend when WalletID is
// empty (project-only tracking). Currency is required for wallet-less spends
// and must match the wallet currency otherwise.
type SpendInput struct {
	WalletID       string
	Amount         decimal.Decimal
	Currency       string
	AllowOverdraft bool
	Status         Status
	Description    string
	ProjectID      string
	WorkItemID     string
	TimeLogID      string
	CategoryID     string
	WorkspaceID    string
	CreatedBy      string
}

// TransferInput moves value between two distinct wallets. TargetAmount is the
// destination-currency amount and is mandatory when currencies differ; it is
// ignored for same-currency transfers.
type TransferInput struct {
	FromWalletID          string
	ToWalletID            string
	Amount                decimal.Decimal
	TargetAmount          decimal.Decimal
	AllowOverdraft        bool
	Description           string
	CategoryID            string
	DestinationCategoryID string
	ProjectID             string
	WorkItemID            string
	WorkspaceID           string
	CreatedBy             string
}

// TransferResult carries the two legs of a completed transfer and the
// resulting wallet balances.
type TransferResult struct {
	Outbound    Transaction
	Inbound     Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

// BatchLeg is one destination of a batch transfer.
type BatchLeg struct {
	ToWalletID   string
	Amount       decimal.Decimal
	TargetAmount decimal.Decimal
	Description  string
	CategoryID   string
}

// BatchTransferInput fans one source wallet out to many destinations as a
// single atomic unit. Either every leg posts or none does.
type BatchTransferInput struct {
	FromWalletID   string
	Legs           []BatchLeg
	AllowOverdraft bool
	WorkspaceID    string
	CreatedBy      string
}

// HoldInput provisionally reserves project budget for a work item. No wallet
// balance is touched.
type HoldInput struct {
	ProjectID   string
	WorkItemID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	WorkspaceID string
	CreatedBy   string
}

// CommitInput settles a work item's hold at its actual cost, which may differ
// from the reserved amount. TimeLogID, when set, keys billing idempotency.
type CommitInput struct {
	ProjectID      string
	WorkItemID     string
	ActualAmount   decimal.Decimal
	Currency       string
	AllowOverdraft bool
	TimeLogID      string
	Description    string
	WorkspaceID    string
	CreatedBy      string
}

// CommitResult reports the entries written by a commit. Release is nil when
// no hold preceded the commit.
type CommitResult struct {
	Release *Transaction
	Spend   Transaction
}

// ProjectBalance is the derived budget summary of a project: available equals
// deposited minus spent minus (held minus released), over completed entries only.
type ProjectBalance struct {
	ProjectID string
	Deposited decimal.Decimal
	Spent     decimal.Decimal
	Held      decimal.Decimal
	Released  decimal.Decimal
	OnHold    decimal.Decimal
	Available decimal.Decimal
}

// TransactionFilter narrows log reads. Zero values match everything.
type TransactionFilter struct {
	WalletID   string
	ProjectID  string
	WorkItemID string
	Kind       Kind
	Status     Status
	Limit      int
}

// Ledger is the contract implemented by ledger backends (Postgres in
// production, in-memory for tests). Every mutating call is atomic and
// serializes against concurrent calls touching the same wallet or project.
type Ledger interface {
	// EnsureWallet registers a wallet with the ledger so it can carry a balance.
	EnsureWallet(ctx context.Context, ref WalletRef) error
	// DeactivateWallet stops a wallet from accepting further postings.
	DeactivateWallet(ctx context.Context, walletID string) error
	// WalletBalance returns the materialized balance of the wallet.
	WalletBalance(ctx context.Context, walletID string) (decimal.Decimal, error)
	// Reconcile recomputes the wallet balance from the full transaction log,
	// stores it, and returns it. The result is identical on repeated calls.
	Reconcile(ctx context.Context, walletID string) (decimal.Decimal, error)

	Deposit(ctx context.Context, in DepositInput) (Transaction, error)
	Spend(ctx context.Context, in SpendInput) (Transaction, error)
	Transfer(ctx context.Context, in TransferInput) (TransferResult, error)
	TransferBatch(ctx context.Context, in BatchTransferInput) ([]TransferResult, error)
	Hold(ctx context.Context, in HoldInput) (Transaction, error)
	Commit(ctx context.Context, in CommitInput) (CommitResult, error)

	ProjectBalance(ctx context.Context, projectID string) (ProjectBalance, error)
	Transactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

func normalizeAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}
	return amount, nil
}

func matchesFilter(t Transaction, f TransactionFilter) bool {
	if f.WalletID != "" && t.SourceWalletID != f.WalletID && t.DestinationWalletID != f.WalletID {
		return false
	}
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.WorkItemID != "" && t.WorkItemID != f.WorkItemID {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	return true
}

func statusOrCompleted(s Status) Status {
	if s == "" {
		return StatusCompleted
	}
	return s
}

func currencyOrDefault(c string) string {
	if c == "" {
		return DefaultCurrency
	}
	return c
}
