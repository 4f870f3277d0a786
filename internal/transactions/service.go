package transactions

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/notification"
	"github.com/office360/treasury/internal/wallet"
)

// Service wires wallet-facing ledger postings: deposits, spends and
// transfers. Holds and commits live in the budget service.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	notifier notification.Notifier
}

// NewService constructs a transactions service.
func NewService(ledger ledger.Ledger, wallets *wallet.Service, notifier notification.Notifier) *Service {
	return &Service{ledger: ledger, wallets: wallets, notifier: notifier}
}

// DepositInput captures the data needed to credit a wallet.
type DepositInput struct {
	WalletID    string
	Amount      decimal.Decimal
	Description string
	ProjectID   string
	CategoryID  string
	CreatedBy   string
}

// Deposit credits the wallet. Money entering the system is never blocked.
func (s *Service) Deposit(ctx context.Context, input DepositInput) (ledger.Transaction, error) {
	w, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	return s.ledger.Deposit(ctx, ledger.DepositInput{
		WalletID:    w.ID,
		Amount:      input.Amount,
		Description: input.Description,
		ProjectID:   input.ProjectID,
		CategoryID:  input.CategoryID,
		WorkspaceID: w.WorkspaceID,
		CreatedBy:   input.CreatedBy,
	})
}

// SpendInput captures the data needed to debit a wallet, or to record a
// wallet-less spend when WalletID is empty.
type SpendInput struct {
	WalletID       string
	Amount         decimal.Decimal
	Currency       string
	AllowOverdraft bool
	Description    string
	ProjectID      string
	WorkItemID     string
	CategoryID     string
	CreatedBy      string
}

// Spend debits the wallet, honoring the overdraft flag.
func (s *Service) Spend(ctx context.Context, input SpendInput) (ledger.Transaction, error) {
	in := ledger.SpendInput{
		Amount:         input.Amount,
		Currency:       input.Currency,
		AllowOverdraft: input.AllowOverdraft,
		Description:    input.Description,
		ProjectID:      input.ProjectID,
		WorkItemID:     input.WorkItemID,
		CategoryID:     input.CategoryID,
		CreatedBy:      input.CreatedBy,
	}
	if input.WalletID != "" {
		w, err := s.wallets.Get(ctx, input.WalletID)
		if err != nil {
			return ledger.Transaction{}, err
		}
		in.WalletID = w.ID
		in.WorkspaceID = w.WorkspaceID
	}
	return s.ledger.Spend(ctx, in)
}

// TransferInput captures the data needed to move funds between two wallets.
type TransferInput struct {
	FromWalletID   string
	ToWalletID     string
	Amount         decimal.Decimal
	TargetAmount   decimal.Decimal
	AllowOverdraft bool
	Description    string
	ProjectID      string
	CategoryID     string
	CreatedBy      string
}

// TransferOutcome describes the ledger outcome of a transfer.
type TransferOutcome struct {
	Result      ledger.TransferResult
	CompletedAt time.Time
}

// Transfer posts the two linked legs of a wallet-to-wallet movement and
// notifies the receiving owner.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferOutcome, error) {
	fromWallet, err := s.wallets.Get(ctx, input.FromWalletID)
	if err != nil {
		return TransferOutcome{}, err
	}
	toWallet, err := s.wallets.Get(ctx, input.ToWalletID)
	if err != nil {
		return TransferOutcome{}, err
	}

	description := input.Description
	if description == "" {
		description = fmt.Sprintf("Transfer to %s", toWallet.Name)
	}
	workspaceID := fromWallet.WorkspaceID
	if workspaceID == "" {
		workspaceID = toWallet.WorkspaceID
	}

	res, err := s.ledger.Transfer(ctx, ledger.TransferInput{
		FromWalletID:   fromWallet.ID,
		ToWalletID:     toWallet.ID,
		Amount:         input.Amount,
		TargetAmount:   input.TargetAmount,
		AllowOverdraft: input.AllowOverdraft,
		Description:    description,
		ProjectID:      input.ProjectID,
		CategoryID:     input.CategoryID,
		WorkspaceID:    workspaceID,
		CreatedBy:      input.CreatedBy,
	})
	if err != nil {
		return TransferOutcome{}, err
	}

	if s.notifier != nil {
		recipient := toWallet.OwnerID
		if recipient == "" {
			recipient = toWallet.WorkspaceID
		}
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: recipient,
			Body:        fmt.Sprintf("Wallet %s received %s %s", toWallet.Name, res.Inbound.Amount, res.Inbound.Currency),
		})
	}

	return TransferOutcome{Result: res, CompletedAt: time.Now().UTC()}, nil
}

// List reads the transaction log with the supplied filter.
func (s *Service) List(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return s.ledger.Transactions(ctx, filter)
}
