package transactions

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/logging"
	"github.com/office360/treasury/internal/notification"
	"github.com/office360/treasury/internal/wallet"
)

func newTestService(t *testing.T) (*Service, *wallet.Service, ledger.Ledger) {
	t.Helper()
	engine := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), engine)
	svc := NewService(engine, wallets, notification.NewLoggerNotifier(logging.Discard()))
	return svc, wallets, engine
}

func mustWallet(t *testing.T, wallets *wallet.Service, owner, name, currency string) wallet.Wallet {
	t.Helper()
	w, err := wallets.Create(context.Background(), wallet.CreateInput{OwnerID: owner, Name: name, Currency: currency})
	if err != nil {
		t.Fatalf("create wallet %s: %v", name, err)
	}
	return w
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return d
}

func TestDepositThenSpend(t *testing.T) {
	ctx := context.Background()
	svc, wallets, _ := newTestService(t)
	w := mustWallet(t, wallets, "owner-1", "Main card", "RUB")

	if _, err := svc.Deposit(ctx, DepositInput{WalletID: w.ID, Amount: dec(t, "1000"), CreatedBy: "owner-1"}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := svc.Spend(ctx, SpendInput{WalletID: w.ID, Amount: dec(t, "250.50"), CreatedBy: "owner-1"}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	balance, err := wallets.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Amount.Equal(dec(t, "749.50")) {
		t.Fatalf("expected 749.50, got %s", balance.Amount)
	}
}

func TestSpendUnknownWallet(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.Spend(context.Background(), SpendInput{WalletID: "missing", Amount: dec(t, "10")})
	if !errors.Is(err, wallet.ErrNotFound) {
		t.Fatalf("expected wallet.ErrNotFound, got %v", err)
	}
}

func TestSpendWithoutWalletRecordsExpense(t *testing.T) {
	ctx := context.Background()
	svc, _, engine := newTestService(t)

	tx, err := svc.Spend(ctx, SpendInput{Amount: dec(t, "99"), ProjectID: "proj-7", CreatedBy: "admin"})
	if err != nil {
		t.Fatalf("wallet-less spend: %v", err)
	}
	if tx.SourceWalletID != "" {
		t.Fatalf("expected empty source wallet, got %s", tx.SourceWalletID)
	}

	items, err := engine.Transactions(ctx, ledger.TransactionFilter{ProjectID: "proj-7"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Kind != ledger.KindSpend {
		t.Fatalf("expected one spend entry, got %+v", items)
	}
}

func TestTransferDefaultDescription(t *testing.T) {
	ctx := context.Background()
	svc, wallets, _ := newTestService(t)
	from := mustWallet(t, wallets, "owner-1", "Main card", "RUB")
	to := mustWallet(t, wallets, "owner-2", "Savings", "RUB")

	if _, err := svc.Deposit(ctx, DepositInput{WalletID: from.ID, Amount: dec(t, "500")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	out, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: dec(t, "200")})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if out.Result.Outbound.Description != "Transfer to Savings" {
		t.Fatalf("unexpected description %q", out.Result.Outbound.Description)
	}
	if !out.Result.FromBalance.Equal(dec(t, "300")) || !out.Result.ToBalance.Equal(dec(t, "200")) {
		t.Fatalf("unexpected balances %s / %s", out.Result.FromBalance, out.Result.ToBalance)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, wallets, _ := newTestService(t)
	from := mustWallet(t, wallets, "owner-1", "Main card", "RUB")
	to := mustWallet(t, wallets, "owner-2", "Savings", "RUB")

	_, err := svc.Transfer(ctx, TransferInput{FromWalletID: from.ID, ToWalletID: to.ID, Amount: dec(t, "10")})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}
