package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T, wallets ...WalletRef) Ledger {
	t.Helper()
	l := NewInMemory()
	ctx := context.Background()
	for _, ref := range wallets {
		if err := l.EnsureWallet(ctx, ref); err != nil {
			t.Fatalf("ensure wallet %s: %v", ref.ID, err)
		}
	}
	return l
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDepositIncreasesBalance(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()

	tx, err := l.Deposit(ctx, DepositInput{WalletID: "wallet-a", Amount: dec("1000"), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if tx.Kind != KindDeposit || tx.DestinationWalletID != "wallet-a" || tx.SourceWalletID != "" {
		t.Fatalf("unexpected deposit entry: %+v", tx)
	}
	if tx.Currency != "RUB" {
		t.Fatalf("expected wallet currency, got %s", tx.Currency)
	}

	balance, err := l.WalletBalance(ctx, "wallet-a")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !balance.Equal(dec("1000")) {
		t.Fatalf("expected balance 1000, got %s", balance)
	}
}

func TestSpendInsufficientFunds(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("1000"))

	_, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("1500"), CreatedBy: "u1"})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	balance, _ := l.WalletBalance(ctx, "wallet-a")
	if !balance.Equal(dec("1000")) {
		t.Fatalf("balance must be unchanged, got %s", balance)
	}
	txs, _ := l.Transactions(ctx, TransactionFilter{WalletID: "wallet-a"})
	if len(txs) != 0 {
		t.Fatalf("failed spend must write nothing, found %d entries", len(txs))
	}
}

func TestSpendOverdraftAllowed(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("1000"))

	tx, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("1500"), AllowOverdraft: true, CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if !tx.Amount.Equal(dec("1500")) || tx.Amount.Sign() <= 0 {
		t.Fatalf("amount must stay positive, got %s", tx.Amount)
	}

	balance, _ := l.WalletBalance(ctx, "wallet-a")
	if !balance.Equal(dec("-500")) {
		t.Fatalf("expected balance -500, got %s", balance)
	}
}

func TestSpendWithoutWallet(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	tx, err := l.Spend(ctx, SpendInput{Amount: dec("300"), ProjectID: "proj-1", CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("unassigned spend: %v", err)
	}
	if tx.SourceWalletID != "" || tx.Currency != DefaultCurrency {
		t.Fatalf("unexpected entry: %+v", tx)
	}
}

func TestSpendCurrencyMismatch(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("1000"))

	_, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("10"), Currency: "USD", CreatedBy: "u1"})
	if !errors.Is(err, ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
}

func TestNonPositiveAmountRejected(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()

	for _, amount := range []decimal.Decimal{decimal.Zero, dec("-5")} {
		if _, err := l.Deposit(ctx, DepositInput{WalletID: "wallet-a", Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("deposit %s: expected invalid amount, got %v", amount, err)
		}
		if _, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("spend %s: expected invalid amount, got %v", amount, err)
		}
		if _, err := l.Hold(ctx, HoldInput{ProjectID: "p", WorkItemID: "w", Amount: amount}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("hold %s: expected invalid amount, got %v", amount, err)
		}
	}
}

func TestTransferSameCurrency(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-a", Currency: "RUB"},
		WalletRef{ID: "wallet-b", Currency: "RUB"},
	)
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("1000"))

	res, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: dec("100"), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !res.FromBalance.Equal(dec("900")) || !res.ToBalance.Equal(dec("100")) {
		t.Fatalf("unexpected balances: from=%s to=%s", res.FromBalance, res.ToBalance)
	}
	if res.Outbound.TransferGroupID == "" || res.Outbound.TransferGroupID != res.Inbound.TransferGroupID {
		t.Fatalf("legs must share a transfer group: %q vs %q", res.Outbound.TransferGroupID, res.Inbound.TransferGroupID)
	}
	if res.Outbound.SourceWalletID != "wallet-a" || res.Outbound.DestinationWalletID != "" {
		t.Fatalf("outbound leg must carry only the source: %+v", res.Outbound)
	}
	if res.Inbound.DestinationWalletID != "wallet-b" || res.Inbound.SourceWalletID != "" {
		t.Fatalf("inbound leg must carry only the destination: %+v", res.Inbound)
	}
}

func TestTransferCrossCurrency(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-rub", Currency: "RUB"},
		WalletRef{ID: "wallet-usd", Currency: "USD"},
	)
	ctx := context.Background()
	SeedBalance(l, "wallet-rub", dec("10000"))

	_, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-rub", ToWalletID: "wallet-usd", Amount: dec("9000")})
	if !errors.Is(err, ErrTargetAmountRequired) {
		t.Fatalf("expected target amount required, got %v", err)
	}

	res, err := l.Transfer(ctx, TransferInput{
		FromWalletID: "wallet-rub",
		ToWalletID:   "wallet-usd",
		Amount:       dec("9000"),
		TargetAmount: dec("100"),
	})
	if err != nil {
		t.Fatalf("cross-currency transfer: %v", err)
	}
	if res.Outbound.Currency != "RUB" || !res.Outbound.Amount.Equal(dec("9000")) {
		t.Fatalf("unexpected outbound leg: %+v", res.Outbound)
	}
	if res.Inbound.Currency != "USD" || !res.Inbound.Amount.Equal(dec("100")) {
		t.Fatalf("unexpected inbound leg: %+v", res.Inbound)
	}
}

func TestTransferFailureLeavesNoTrace(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-a", Currency: "RUB"},
		WalletRef{ID: "wallet-b", Currency: "RUB"},
	)
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("50"))

	_, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: dec("100")})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	a, _ := l.WalletBalance(ctx, "wallet-a")
	b, _ := l.WalletBalance(ctx, "wallet-b")
	if !a.Equal(dec("50")) || !b.IsZero() {
		t.Fatalf("balances must be untouched: a=%s b=%s", a, b)
	}

	if _, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-a", Amount: dec("10")}); !errors.Is(err, ErrSameWallet) {
		t.Fatalf("expected same wallet error, got %v", err)
	}
}

func TestHoldAndElasticCommit(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("300"))

	hold, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("200"), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if hold.Kind != KindHold {
		t.Fatalf("unexpected kind %s", hold.Kind)
	}

	balance, _ := l.ProjectBalance(ctx, "proj-1")
	if !balance.Available.Equal(dec("100")) {
		t.Fatalf("expected available 100 after hold, got %s", balance.Available)
	}

	// Actual cost exceeds the reservation; the released 200 plus the free 100
	// cover it.
	res, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("250"), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Release == nil || !res.Release.Amount.Equal(dec("200")) {
		t.Fatalf("expected release of 200, got %+v", res.Release)
	}
	if !res.Spend.Amount.Equal(dec("250")) {
		t.Fatalf("expected spend of 250, got %s", res.Spend.Amount)
	}

	balance, _ = l.ProjectBalance(ctx, "proj-1")
	if !balance.Available.Equal(dec("50")) {
		t.Fatalf("expected available 50, got %s", balance.Available)
	}
}

func TestHoldInsufficientBudget(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("100"))

	if _, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("150")}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	txs, _ := l.Transactions(ctx, TransactionFilter{ProjectID: "proj-1", Kind: KindHold})
	if len(txs) != 0 {
		t.Fatalf("failed hold must write nothing, found %d", len(txs))
	}
}

func TestCommitWithoutHold(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("500"))

	res, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-9", ActualAmount: dec("120"), CreatedBy: "u1"})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Release != nil {
		t.Fatalf("no hold existed, release must be skipped: %+v", res.Release)
	}
	if !res.Spend.Amount.Equal(dec("120")) {
		t.Fatalf("unexpected spend %s", res.Spend.Amount)
	}
}

func TestCommitTwiceRejected(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("500"))

	if _, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("200")}); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("180")}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("180")}); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("second commit must be rejected, got %v", err)
	}

	releases, _ := l.Transactions(ctx, TransactionFilter{WorkItemID: "task-1", Kind: KindRelease})
	spends, _ := l.Transactions(ctx, TransactionFilter{WorkItemID: "task-1", Kind: KindSpend})
	if len(releases) != 1 || len(spends) != 1 {
		t.Fatalf("double settlement detected: %d releases, %d spends", len(releases), len(spends))
	}
}

func TestCommitTimeLogIdempotency(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("1000"))

	in := CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("90"), TimeLogID: "log-77", AllowOverdraft: true}
	if _, err := l.Commit(ctx, in); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := l.Commit(ctx, in); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("rebilling the same time log must be rejected, got %v", err)
	}
}

func TestCommitSameTimeLogAfterNewHold(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("1000"))

	if _, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("100")}); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	in := CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("90"), TimeLogID: "log-7"}
	if _, err := l.Commit(ctx, in); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// A fresh hold on the work item must not reopen billing for a time log
	// that was already settled.
	if _, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("100")}); err != nil {
		t.Fatalf("second hold: %v", err)
	}
	if _, err := l.Commit(ctx, in); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected already settled for rebilled time log, got %v", err)
	}

	spends, _ := l.Transactions(ctx, TransactionFilter{Kind: KindSpend})
	billed := 0
	for _, s := range spends {
		if s.TimeLogID == "log-7" {
			billed++
		}
	}
	if billed != 1 {
		t.Fatalf("time log billed %d times", billed)
	}

	// The new hold still settles under a different time log.
	if _, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("80"), TimeLogID: "log-8"}); err != nil {
		t.Fatalf("commit with new time log: %v", err)
	}
}

func TestCommitInsufficientWritesNothing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("100"))

	if _, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: dec("100")}); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if _, err := l.Commit(ctx, CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", ActualAmount: dec("150")}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}

	// The release written in step one must not survive the failed commit.
	releases, _ := l.Transactions(ctx, TransactionFilter{WorkItemID: "task-1", Kind: KindRelease})
	if len(releases) != 0 {
		t.Fatalf("failed commit leaked %d release entries", len(releases))
	}
	balance, _ := l.ProjectBalance(ctx, "proj-1")
	if !balance.Available.IsZero() {
		t.Fatalf("hold must remain outstanding, available=%s", balance.Available)
	}
}

func TestConcurrentSpendsNeverDoubleDecrement(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("150"))

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("100"), CreatedBy: "u1"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one failure, got ok=%d insufficient=%d", ok, insufficient)
	}
	balance, _ := l.WalletBalance(ctx, "wallet-a")
	if !balance.Equal(dec("50")) {
		t.Fatalf("expected final balance 50, got %s", balance)
	}
}

func TestOppositeTransfersDoNotDeadlock(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-a", Currency: "RUB"},
		WalletRef{ID: "wallet-b", Currency: "RUB"},
	)
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("10000"))
	SeedBalance(l, "wallet-b", dec("10000"))

	const rounds = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: dec("10")}); err != nil {
				t.Errorf("a->b transfer %d: %v", i, err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if _, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-b", ToWalletID: "wallet-a", Amount: dec("10")}); err != nil {
				t.Errorf("b->a transfer %d: %v", i, err)
			}
		}
	}()
	wg.Wait()

	a, _ := l.WalletBalance(ctx, "wallet-a")
	b, _ := l.WalletBalance(ctx, "wallet-b")
	if !a.Add(b).Equal(dec("20000")) {
		t.Fatalf("value not conserved: a=%s b=%s", a, b)
	}
}

func TestConcurrentHoldsNeverOversubscribe(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	SeedProjectBudget(l, "proj-1", dec("500"))

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: fmt.Sprintf("task-%d", i), Amount: dec("100")})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, ErrInsufficientFunds) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 5 {
		t.Fatalf("budget of 500 admits exactly 5 holds of 100, got %d", ok)
	}
	balance, _ := l.ProjectBalance(ctx, "proj-1")
	if balance.Available.IsNegative() {
		t.Fatalf("budget oversubscribed: available=%s", balance.Available)
	}
}

func TestLockTimeoutSurfacesContention(t *testing.T) {
	l := NewInMemoryWithTimeout(20 * time.Millisecond)
	ctx := context.Background()
	if err := l.EnsureWallet(ctx, WalletRef{ID: "wallet-a", Currency: "RUB"}); err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	SeedBalance(l, "wallet-a", dec("100"))

	// Occupy the wallet slot directly so the next operation times out.
	mem := l.(*inMemoryLedger)
	mem.wallets["wallet-a"].sem <- struct{}{}
	defer func() { <-mem.wallets["wallet-a"].sem }()

	if _, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("10")}); !errors.Is(err, ErrContention) {
		t.Fatalf("expected contention error, got %v", err)
	}
}

func TestTransferBatchAllOrNothing(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-src", Currency: "RUB"},
		WalletRef{ID: "wallet-d1", Currency: "RUB"},
		WalletRef{ID: "wallet-d2", Currency: "RUB"},
	)
	ctx := context.Background()
	SeedBalance(l, "wallet-src", dec("100"))

	_, err := l.TransferBatch(ctx, BatchTransferInput{
		FromWalletID: "wallet-src",
		Legs: []BatchLeg{
			{ToWalletID: "wallet-d1", Amount: dec("80")},
			{ToWalletID: "wallet-d2", Amount: dec("80")},
		},
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	txs, _ := l.Transactions(ctx, TransactionFilter{WalletID: "wallet-src"})
	if len(txs) != 0 {
		t.Fatalf("failed batch must write nothing, found %d entries", len(txs))
	}

	results, err := l.TransferBatch(ctx, BatchTransferInput{
		FromWalletID: "wallet-src",
		Legs: []BatchLeg{
			{ToWalletID: "wallet-d1", Amount: dec("60")},
			{ToWalletID: "wallet-d2", Amount: dec("40")},
		},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	src, _ := l.WalletBalance(ctx, "wallet-src")
	if !src.IsZero() {
		t.Fatalf("expected drained source, got %s", src)
	}
	if results[0].Outbound.TransferGroupID == results[1].Outbound.TransferGroupID {
		t.Fatalf("each leg pair must carry its own transfer group")
	}
}

func TestDeactivatedWalletRejectsPostings(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()
	SeedBalance(l, "wallet-a", dec("100"))

	if err := l.DeactivateWallet(ctx, "wallet-a"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := l.Deposit(ctx, DepositInput{WalletID: "wallet-a", Amount: dec("10")}); !errors.Is(err, ErrWalletInactive) {
		t.Fatalf("expected inactive wallet error, got %v", err)
	}
}

func TestReconcileMatchesStoredBalance(t *testing.T) {
	l := newTestLedger(t,
		WalletRef{ID: "wallet-a", Currency: "RUB"},
		WalletRef{ID: "wallet-b", Currency: "RUB"},
	)
	ctx := context.Background()

	if _, err := l.Deposit(ctx, DepositInput{WalletID: "wallet-a", Amount: dec("1000")}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := l.Spend(ctx, SpendInput{WalletID: "wallet-a", Amount: dec("250.50")}); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if _, err := l.Transfer(ctx, TransferInput{FromWalletID: "wallet-a", ToWalletID: "wallet-b", Amount: dec("100")}); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	stored, _ := l.WalletBalance(ctx, "wallet-a")
	first, err := l.Reconcile(ctx, "wallet-a")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	second, err := l.Reconcile(ctx, "wallet-a")
	if err != nil {
		t.Fatalf("reconcile again: %v", err)
	}
	if !first.Equal(stored) || !second.Equal(first) {
		t.Fatalf("reconciliation drift: stored=%s first=%s second=%s", stored, first, second)
	}
	if !first.Equal(dec("649.50")) {
		t.Fatalf("expected 649.50, got %s", first)
	}
}

func TestPendingEntriesDoNotCount(t *testing.T) {
	l := newTestLedger(t, WalletRef{ID: "wallet-a", Currency: "RUB"})
	ctx := context.Background()

	if _, err := l.Deposit(ctx, DepositInput{WalletID: "wallet-a", Amount: dec("100"), Status: StatusPending}); err != nil {
		t.Fatalf("pending deposit: %v", err)
	}
	balance, _ := l.WalletBalance(ctx, "wallet-a")
	if !balance.IsZero() {
		t.Fatalf("pending deposit must not move the balance, got %s", balance)
	}
	reconciled, _ := l.Reconcile(ctx, "wallet-a")
	if !reconciled.IsZero() {
		t.Fatalf("pending deposit must not reconcile into the balance, got %s", reconciled)
	}
}
