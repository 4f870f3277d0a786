package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
)

func TestServiceCreateAndBalance(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)

	ctx := context.Background()
	ownerID := uuid.NewString()
	w, err := svc.Create(ctx, CreateInput{OwnerID: ownerID, Name: "Main card", Currency: "RUB"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if w.Type != TypeBank {
		t.Fatalf("expected default type bank, got %s", w.Type)
	}

	fetched, err := svc.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if fetched.ID != w.ID || fetched.OwnerID != ownerID {
		t.Fatalf("expected wallet %s, got %s", w.ID, fetched.ID)
	}

	ledger.SeedBalance(led, w.ID, decimal.NewFromInt(2_500))

	balance, err := svc.Balance(ctx, w.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(2_500)) {
		t.Fatalf("expected balance 2500, got %s", balance.Amount)
	}
	if balance.Currency != "RUB" {
		t.Fatalf("expected RUB, got %s", balance.Currency)
	}
}

func TestServiceOwnerExclusivity(t *testing.T) {
	svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "orphan"}); !errors.Is(err, ErrMissingOwner) {
		t.Fatalf("expected missing owner, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), WorkspaceID: uuid.NewString()}); !errors.Is(err, ErrAmbiguousOwner) {
		t.Fatalf("expected ambiguous owner, got %v", err)
	}
}

func TestServiceDeactivateStopsPostings(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{WorkspaceID: uuid.NewString(), Name: "Ops"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if err := svc.Deactivate(ctx, w.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := led.Deposit(ctx, ledger.DepositInput{WalletID: w.ID, Amount: decimal.NewFromInt(10)}); !errors.Is(err, ledger.ErrWalletInactive) {
		t.Fatalf("expected inactive wallet error, got %v", err)
	}

	fetched, err := repo.Get(ctx, w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Active {
		t.Fatalf("wallet must be flagged inactive")
	}
}

func TestServiceReconcile(t *testing.T) {
	repo := NewMemoryRepository()
	led := ledger.NewInMemory()
	svc := NewService(repo, led)
	ctx := context.Background()

	w, err := svc.Create(ctx, CreateInput{OwnerID: uuid.NewString(), Name: "Cash"})
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	if _, err := led.Deposit(ctx, ledger.DepositInput{WalletID: w.ID, Amount: decimal.NewFromInt(400)}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := led.Spend(ctx, ledger.SpendInput{WalletID: w.ID, Amount: decimal.NewFromInt(150)}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	balance, err := svc.Reconcile(ctx, w.ID)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !balance.Amount.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected 250, got %s", balance.Amount)
	}
}
