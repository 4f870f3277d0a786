package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies where the money behind a wallet actually lives.
type Type string

const (
	TypeBank    Type = "bank"
	TypeCash    Type = "cash"
	TypeCrypto  Type = "crypto"
	TypeEWallet Type = "ewallet"
)

// Wallet is a balance-holding account owned by either a person (OwnerID) or a
// tenant workspace (WorkspaceID), never both. Currency is fixed at creation.
// Wallets with ledger history are soft-deactivated, never deleted.
type Wallet struct {
	ID          string
	OwnerID     string
	WorkspaceID string
	Name        string
	Type        Type
	Currency    string
	Balance     decimal.Decimal
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Balance is a point-in-time read of a wallet's funds.
type Balance struct {
	WalletID string
	Amount   decimal.Decimal
	Currency string
	AsOf     time.Time
}
