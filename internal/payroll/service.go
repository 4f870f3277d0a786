package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/notification"
	"github.com/office360/treasury/internal/wallet"
)

var (
	// ErrRunNotDraft is returned when a mutation targets a settled run.
	ErrRunNotDraft = errors.New("payroll run is not a draft")
	// ErrEmptyRun is returned when a run has no payout lines.
	ErrEmptyRun = errors.New("payroll run has no items")
	// ErrMissingPaymentWallet is returned when an employee in the run has no
	// active wallet to receive the payout.
	ErrMissingPaymentWallet = errors.New("employee has no payment wallet")
)

// EmployeeDirectory resolves the wallet an employee is paid into.
type EmployeeDirectory interface {
	PaymentWallet(ctx context.Context, employeeID string) (wallet.Wallet, error)
}

// OwnerWalletDirectory resolves payment wallets as the employee's first
// active wallet, newest last. Employees with no active wallet cannot be paid.
type OwnerWalletDirectory struct {
	wallets *wallet.Service
}

func NewOwnerWalletDirectory(wallets *wallet.Service) *OwnerWalletDirectory {
	return &OwnerWalletDirectory{wallets: wallets}
}

func (d *OwnerWalletDirectory) PaymentWallet(ctx context.Context, employeeID string) (wallet.Wallet, error) {
	owned, err := d.wallets.ListByOwner(ctx, employeeID)
	if err != nil {
		return wallet.Wallet{}, err
	}
	for _, w := range owned {
		if w.Active {
			return w, nil
		}
	}
	return wallet.Wallet{}, fmt.Errorf("%w: %s", ErrMissingPaymentWallet, employeeID)
}

// StaticDirectory resolves payment wallets from a fixed employee-to-wallet
// map. Used by tests and by deployments that sync the mapping externally.
type StaticDirectory map[string]wallet.Wallet

func (d StaticDirectory) PaymentWallet(_ context.Context, employeeID string) (wallet.Wallet, error) {
	w, ok := d[employeeID]
	if !ok {
		return wallet.Wallet{}, fmt.Errorf("%w: %s", ErrMissingPaymentWallet, employeeID)
	}
	return w, nil
}

// Service manages payroll runs: drafts are assembled and edited, then the
// whole run settles through a single batch transfer. A run never ends up
// partially paid.
type Service struct {
	repo      Repository
	ledger    ledger.Ledger
	directory EmployeeDirectory
	notifier  notification.Notifier
}

func NewService(repo Repository, engine ledger.Ledger, directory EmployeeDirectory, notifier notification.Notifier) *Service {
	return &Service{repo: repo, ledger: engine, directory: directory, notifier: notifier}
}

// RunLine is one employee payout in a draft run.
type RunLine struct {
	EmployeeID  string
	Days        int
	Hours       decimal.Decimal
	GrossAmount decimal.Decimal
	NetAmount   decimal.Decimal
}

// CreateRunInput assembles a draft run.
type CreateRunInput struct {
	WorkspaceID string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Currency    string
	CreatedBy   string
	Lines       []RunLine
}

// CreateRun stores a draft run with its payout lines. Lines with a zero net
// amount default to the gross amount.
func (s *Service) CreateRun(ctx context.Context, input CreateRunInput) (Run, []Item, error) {
	if len(input.Lines) == 0 {
		return Run{}, nil, ErrEmptyRun
	}
	currency := input.Currency
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	run := Run{
		ID:          uuid.NewString(),
		WorkspaceID: input.WorkspaceID,
		PeriodStart: input.PeriodStart,
		PeriodEnd:   input.PeriodEnd,
		Status:      StatusDraft,
		Currency:    currency,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	items := make([]Item, 0, len(input.Lines))
	for _, line := range input.Lines {
		net := line.NetAmount
		if net.IsZero() {
			net = line.GrossAmount
		}
		items = append(items, Item{
			ID:          uuid.NewString(),
			RunID:       run.ID,
			EmployeeID:  line.EmployeeID,
			Days:        line.Days,
			Hours:       line.Hours,
			GrossAmount: line.GrossAmount,
			NetAmount:   net,
		})
	}
	if err := s.repo.CreateRun(ctx, run, items); err != nil {
		return Run{}, nil, err
	}
	run.Total = totalNet(items)
	return run, items, nil
}

func totalNet(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.NetAmount)
	}
	return total
}

// Run returns a run with its items.
func (s *Service) Run(ctx context.Context, runID string) (Run, []Item, error) {
	run, err := s.repo.GetRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	items, err := s.repo.ItemsByRun(ctx, runID)
	if err != nil {
		return Run{}, nil, err
	}
	run.Total = totalNet(items)
	return run, items, nil
}

// ListRuns returns the workspace's runs, newest first.
func (s *Service) ListRuns(ctx context.Context, workspaceID string) ([]Run, error) {
	return s.repo.ListRuns(ctx, workspaceID)
}

// UpdateItemNet adjusts one payout line. Only draft runs can be edited; the
// repository enforces that atomically against a concurrent settlement.
func (s *Service) UpdateItemNet(ctx context.Context, runID, itemID string, net decimal.Decimal) error {
	if !net.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	return s.repo.UpdateItemNet(ctx, runID, itemID, net)
}

// CommitRunInput settles a draft run from the given source wallet.
type CommitRunInput struct {
	RunID          string
	SourceWalletID string
	AllowOverdraft bool
	CreatedBy      string
}

// CommitRun pays every item of a draft run in one atomic batch. The run is
// claimed paid first: the compare-and-set in ClaimDraft is what makes the
// transition one-way, so a concurrent commit of the same run loses with
// ErrRunNotDraft before any money moves. Every employee must resolve to an
// active payment wallet; any failure after the claim releases it and leaves
// the run in draft.
func (s *Service) CommitRun(ctx context.Context, input CommitRunInput) (Run, error) {
	run, err := s.repo.GetRun(ctx, input.RunID)
	if err != nil {
		return Run{}, err
	}
	if run.Status != StatusDraft {
		return Run{}, ErrRunNotDraft
	}

	paidAt := time.Now().UTC()
	if err := s.repo.ClaimDraft(ctx, run.ID, paidAt); err != nil {
		return Run{}, err
	}

	// The item snapshot is taken after the claim, so a draft edit either
	// landed before it or is rejected by the repository's draft guard.
	items, err := s.repo.ItemsByRun(ctx, input.RunID)
	if err != nil {
		return Run{}, s.abortClaim(ctx, run.ID, err)
	}
	if len(items) == 0 {
		return Run{}, s.abortClaim(ctx, run.ID, ErrEmptyRun)
	}
	run.Total = totalNet(items)

	destinations := make([]wallet.Wallet, len(items))
	for i, item := range items {
		w, err := s.directory.PaymentWallet(ctx, item.EmployeeID)
		if err != nil {
			return Run{}, s.abortClaim(ctx, run.ID, err)
		}
		destinations[i] = w
	}

	period := fmt.Sprintf("%s to %s", run.PeriodStart.Format("2006-01-02"), run.PeriodEnd.Format("2006-01-02"))
	legs := make([]ledger.BatchLeg, len(items))
	for i, item := range items {
		legs[i] = ledger.BatchLeg{
			ToWalletID:  destinations[i].ID,
			Amount:      item.NetAmount,
			Description: fmt.Sprintf("Payroll %s", period),
		}
	}

	results, err := s.ledger.TransferBatch(ctx, ledger.BatchTransferInput{
		FromWalletID:   input.SourceWalletID,
		Legs:           legs,
		AllowOverdraft: input.AllowOverdraft,
		WorkspaceID:    run.WorkspaceID,
		CreatedBy:      input.CreatedBy,
	})
	if err != nil {
		return Run{}, s.abortClaim(ctx, run.ID, err)
	}

	links := make(map[string]string, len(items))
	for i, item := range items {
		links[item.ID] = results[i].Inbound.ID
	}
	if err := s.repo.MarkItemsPaid(ctx, run.ID, links); err != nil {
		return Run{}, fmt.Errorf("payroll settled but item update failed: %w", err)
	}

	if s.notifier != nil {
		for i, item := range items {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindPayrollPaid,
				Destination: item.EmployeeID,
				Body:        fmt.Sprintf("Salary %s %s paid for %s", item.NetAmount, destinations[i].Currency, period),
			})
		}
	}

	run.Status = StatusPaid
	run.PaidAt = &paidAt
	return run, nil
}

// abortClaim hands a claimed run back to draft after a settlement failure.
// The cause wins; a release failure is attached because the run then stays
// stuck in paid without any money having moved.
func (s *Service) abortClaim(ctx context.Context, runID string, cause error) error {
	if err := s.repo.ReleaseClaim(ctx, runID); err != nil {
		return fmt.Errorf("%w (release claim: %v)", cause, err)
	}
	return cause
}
