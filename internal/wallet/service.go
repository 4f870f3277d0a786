package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/office360/treasury/internal/ledger"
)

var (
	// ErrMissingOwner indicates a wallet with neither a personal owner nor a workspace.
	ErrMissingOwner = errors.New("wallet requires an owner or a workspace")

	// ErrAmbiguousOwner indicates a wallet claiming both a personal owner and a workspace.
	ErrAmbiguousOwner = errors.New("wallet cannot belong to both an owner and a workspace")
)

// Service exposes wallet lifecycle operations. Balance mutation stays with
// the ledger engine; this service only creates, reads and deactivates.
type Service struct {
	repo   Repository
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, ledger ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: ledger}
}

// CreateInput captures data required to create a wallet.
type CreateInput struct {
	OwnerID     string
	WorkspaceID string
	Name        string
	Type        Type
	Currency    string
}

// Create provisions a wallet and registers it with the ledger engine.
func (s *Service) Create(ctx context.Context, input CreateInput) (Wallet, error) {
	if input.OwnerID == "" && input.WorkspaceID == "" {
		return Wallet{}, ErrMissingOwner
	}
	if input.OwnerID != "" && input.WorkspaceID != "" {
		return Wallet{}, ErrAmbiguousOwner
	}

	currency := input.Currency
	if currency == "" {
		currency = ledger.DefaultCurrency
	}
	typ := input.Type
	if typ == "" {
		typ = TypeBank
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		WorkspaceID: input.WorkspaceID,
		Name:        input.Name,
		Type:        typ,
		Currency:    currency,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, w); err != nil {
		return Wallet{}, err
	}
	if err := s.ledger.EnsureWallet(ctx, ledger.WalletRef{ID: w.ID, Currency: w.Currency, Active: true}); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Get retrieves wallet metadata together with its current ledger balance.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	balance, err := s.ledger.WalletBalance(ctx, id)
	if err != nil {
		return Wallet{}, err
	}
	w.Balance = balance
	return w, nil
}

// ListByOwner returns the personal wallets of one principal.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]Wallet, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListByWorkspace returns the business wallets of one workspace.
func (s *Service) ListByWorkspace(ctx context.Context, workspaceID string) ([]Wallet, error) {
	return s.repo.ListByWorkspace(ctx, workspaceID)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.WalletBalance(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: amount, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}

// Deactivate soft-deactivates the wallet. Its log entries remain in the
// ledger forever, which is why wallets are never deleted.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	return s.ledger.DeactivateWallet(ctx, id)
}

// Reconcile recomputes the wallet balance from the transaction log and
// returns the authoritative figure.
func (s *Service) Reconcile(ctx context.Context, id string) (Balance, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	amount, err := s.ledger.Reconcile(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: amount, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}
