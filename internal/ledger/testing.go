package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedBalance force-sets a wallet balance when using the in-memory ledger.
// It bypasses the log, so reconciliation-sensitive tests should fund wallets
// through Deposit instead.
func SeedBalance(l Ledger, walletID string, balance decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[walletID]; exists {
			w.balance = balance
		}
	}
}

// SeedProjectBudget appends a completed deposit entry scoped to the project
// on the in-memory ledger, funding its derived budget without a wallet.
func SeedProjectBudget(l Ledger, projectID string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.log = append(mem.log, Transaction{
			ID:        uuid.NewString(),
			Kind:      KindDeposit,
			Status:    StatusCompleted,
			Amount:    amount,
			Currency:  DefaultCurrency,
			ProjectID: projectID,
			CreatedBy: "seed",
			CreatedAt: time.Now().UTC(),
		})
	}
}
