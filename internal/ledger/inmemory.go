package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultLockTimeout bounds how long an operation waits for a contended
// wallet or project before failing with ErrContention.
const DefaultLockTimeout = 5 * time.Second

type memWallet struct {
	ref     WalletRef
	balance decimal.Decimal
	sem     chan struct{}
}

// inMemoryLedger implements Ledger without external storage. Each wallet and
// each project carries its own single-slot semaphore so operations on the
// same resource serialize while unrelated resources never block each other.
// The shared mutex only guards map access and the commit step (balance
// assignment plus log append).
type inMemoryLedger struct {
	mu          sync.RWMutex
	wallets     map[string]*memWallet
	projects    map[string]chan struct{}
	log         []Transaction
	lockTimeout time.Duration
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests.
func NewInMemory() Ledger {
	return NewInMemoryWithTimeout(DefaultLockTimeout)
}

// NewInMemoryWithTimeout creates an in-memory ledger with a custom lock
// acquisition timeout.
func NewInMemoryWithTimeout(lockTimeout time.Duration) Ledger {
	return &inMemoryLedger{
		wallets:     make(map[string]*memWallet),
		projects:    make(map[string]chan struct{}),
		lockTimeout: lockTimeout,
	}
}

func (l *inMemoryLedger) EnsureWallet(_ context.Context, ref WalletRef) error {
	if ref.ID == "" {
		return ErrWalletNotFound
	}
	if ref.Currency == "" {
		ref.Currency = DefaultCurrency
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.wallets[ref.ID]; !exists {
		ref.Active = true
		l.wallets[ref.ID] = &memWallet{ref: ref, sem: make(chan struct{}, 1)}
	}
	return nil
}

func (l *inMemoryLedger) DeactivateWallet(_ context.Context, walletID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[walletID]
	if !ok {
		return ErrWalletNotFound
	}
	w.ref.Active = false
	return nil
}

func (l *inMemoryLedger) WalletBalance(_ context.Context, walletID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[walletID]
	if !ok {
		return decimal.Decimal{}, ErrWalletNotFound
	}
	return w.balance, nil
}

func (l *inMemoryLedger) Reconcile(ctx context.Context, walletID string) (decimal.Decimal, error) {
	w, err := l.wallet(walletID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	release, err := l.acquire(ctx, w.sem)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()
	balance := decimal.Zero
	for _, t := range l.log {
		if t.Status != StatusCompleted {
			continue
		}
		if t.DestinationWalletID == walletID {
			balance = balance.Add(t.Amount)
		}
		if t.SourceWalletID == walletID {
			balance = balance.Sub(t.Amount)
		}
	}
	w.balance = balance
	return balance, nil
}

func (l *inMemoryLedger) Deposit(ctx context.Context, in DepositInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}
	w, err := l.wallet(in.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	release, err := l.acquire(ctx, w.sem)
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	tx := Transaction{
		ID:                  uuid.NewString(),
		Kind:                KindDeposit,
		Status:              statusOrCompleted(in.Status),
		Amount:              amount,
		Currency:            w.ref.Currency,
		Description:         in.Description,
		DestinationWalletID: w.ref.ID,
		ProjectID:           in.ProjectID,
		WorkItemID:          in.WorkItemID,
		CategoryID:          in.CategoryID,
		WorkspaceID:         in.WorkspaceID,
		CreatedBy:           in.CreatedBy,
		CreatedAt:           time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if tx.Status == StatusCompleted {
		w.balance = w.balance.Add(amount)
	}
	l.log = append(l.log, tx)
	return tx, nil
}

func (l *inMemoryLedger) Spend(ctx context.Context, in SpendInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}

	currency := in.Currency
	var w *memWallet
	if in.WalletID != "" {
		w, err = l.wallet(in.WalletID)
		if err != nil {
			return Transaction{}, err
		}
		if currency != "" && currency != w.ref.Currency {
			return Transaction{}, ErrCurrencyMismatch
		}
		currency = w.ref.Currency
	} else if currency == "" {
		currency = DefaultCurrency
	}

	if w != nil {
		release, err := l.acquire(ctx, w.sem)
		if err != nil {
			return Transaction{}, err
		}
		defer release()
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindSpend,
		Status:      statusOrCompleted(in.Status),
		Amount:      amount,
		Currency:    currency,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		TimeLogID:   in.TimeLogID,
		CategoryID:  in.CategoryID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if w != nil {
		tx.SourceWalletID = w.ref.ID
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w != nil && tx.Status == StatusCompleted {
		next := w.balance.Sub(amount)
		if next.IsNegative() && !in.AllowOverdraft {
			return Transaction{}, ErrInsufficientFunds
		}
		w.balance = next
	}
	l.log = append(l.log, tx)
	return tx, nil
}

func (l *inMemoryLedger) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return TransferResult{}, err
	}
	if in.FromWalletID == in.ToWalletID {
		return TransferResult{}, ErrSameWallet
	}
	from, err := l.wallet(in.FromWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	to, err := l.wallet(in.ToWalletID)
	if err != nil {
		return TransferResult{}, err
	}
	inbound, err := inboundAmount(from.ref, to.ref, amount, in.TargetAmount)
	if err != nil {
		return TransferResult{}, err
	}

	release, err := l.acquireOrdered(ctx, from.sem, from.ref.ID, to.sem, to.ref.ID)
	if err != nil {
		return TransferResult{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()

	nextFrom := from.balance.Sub(amount)
	if nextFrom.IsNegative() && !in.AllowOverdraft {
		return TransferResult{}, ErrInsufficientFunds
	}

	res := l.postTransferLocked(from, to, amount, inbound, in.Description, transferMeta{
		CategoryID:            in.CategoryID,
		DestinationCategoryID: in.DestinationCategoryID,
		ProjectID:             in.ProjectID,
		WorkItemID:            in.WorkItemID,
		WorkspaceID:           in.WorkspaceID,
		CreatedBy:             in.CreatedBy,
	})
	return res, nil
}

func (l *inMemoryLedger) TransferBatch(ctx context.Context, in BatchTransferInput) ([]TransferResult, error) {
	if len(in.Legs) == 0 {
		return nil, nil
	}
	from, err := l.wallet(in.FromWalletID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	dests := make([]*memWallet, len(in.Legs))
	inbounds := make([]decimal.Decimal, len(in.Legs))
	for i, leg := range in.Legs {
		amount, err := normalizeAmount(leg.Amount)
		if err != nil {
			return nil, err
		}
		if leg.ToWalletID == in.FromWalletID {
			return nil, ErrSameWallet
		}
		dest, err := l.wallet(leg.ToWalletID)
		if err != nil {
			return nil, err
		}
		inbound, err := inboundAmount(from.ref, dest.ref, amount, leg.TargetAmount)
		if err != nil {
			return nil, err
		}
		dests[i] = dest
		inbounds[i] = inbound
		total = total.Add(amount)
	}

	// Lock the source and every destination in ascending id order.
	lockSet := map[string]chan struct{}{from.ref.ID: from.sem}
	for _, dest := range dests {
		lockSet[dest.ref.ID] = dest.sem
	}
	ids := make([]string, 0, len(lockSet))
	for id := range lockSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	releases := make([]func(), 0, len(ids))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range ids {
		release, err := l.acquire(ctx, lockSet[id])
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	defer releaseAll()

	l.mu.Lock()
	defer l.mu.Unlock()

	if from.balance.Sub(total).IsNegative() && !in.AllowOverdraft {
		return nil, ErrInsufficientFunds
	}

	results := make([]TransferResult, len(in.Legs))
	for i, leg := range in.Legs {
		results[i] = l.postTransferLocked(from, dests[i], leg.Amount, inbounds[i], leg.Description, transferMeta{
			CategoryID:  leg.CategoryID,
			WorkspaceID: in.WorkspaceID,
			CreatedBy:   in.CreatedBy,
		})
	}
	return results, nil
}

func (l *inMemoryLedger) Hold(ctx context.Context, in HoldInput) (Transaction, error) {
	amount, err := normalizeAmount(in.Amount)
	if err != nil {
		return Transaction{}, err
	}
	release, err := l.acquire(ctx, l.projectSem(in.ProjectID))
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.projectBalanceLocked(in.ProjectID)
	if balance.Available.LessThan(amount) {
		return Transaction{}, ErrInsufficientFunds
	}

	tx := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindHold,
		Status:      StatusCompleted,
		Amount:      amount,
		Currency:    currencyOrDefault(in.Currency),
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}
	l.log = append(l.log, tx)
	return tx, nil
}

func (l *inMemoryLedger) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	actual, err := normalizeAmount(in.ActualAmount)
	if err != nil {
		return CommitResult{}, err
	}
	release, err := l.acquire(ctx, l.projectSem(in.ProjectID))
	if err != nil {
		return CommitResult{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()

	held, released := decimal.Zero, decimal.Zero
	for _, t := range l.log {
		if t.WorkItemID != in.WorkItemID || t.Status != StatusCompleted {
			continue
		}
		switch t.Kind {
		case KindHold:
			held = held.Add(t.Amount)
		case KindRelease:
			released = released.Add(t.Amount)
		}
	}
	outstanding := held.Sub(released)

	if in.TimeLogID != "" && l.timeLogBilledLocked(in.TimeLogID) {
		return CommitResult{}, ErrAlreadySettled
	}
	if held.IsPositive() && !outstanding.IsPositive() {
		return CommitResult{}, ErrAlreadySettled
	}

	now := time.Now().UTC()
	currency := currencyOrDefault(in.Currency)
	result := CommitResult{}

	if outstanding.IsPositive() {
		releaseTx := Transaction{
			ID:          uuid.NewString(),
			Kind:        KindRelease,
			Status:      StatusCompleted,
			Amount:      outstanding,
			Currency:    currency,
			Description: in.Description,
			ProjectID:   in.ProjectID,
			WorkItemID:  in.WorkItemID,
			WorkspaceID: in.WorkspaceID,
			CreatedBy:   in.CreatedBy,
			CreatedAt:   now,
		}
		l.log = append(l.log, releaseTx)
		result.Release = &releaseTx
	}

	if !in.AllowOverdraft {
		balance := l.projectBalanceLocked(in.ProjectID)
		if balance.Available.LessThan(actual) {
			// Undo the release so a failed commit leaves no trace.
			if result.Release != nil {
				l.log = l.log[:len(l.log)-1]
			}
			return CommitResult{}, ErrInsufficientFunds
		}
	}

	spendTx := Transaction{
		ID:          uuid.NewString(),
		Kind:        KindSpend,
		Status:      StatusCompleted,
		Amount:      actual,
		Currency:    currency,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		WorkItemID:  in.WorkItemID,
		TimeLogID:   in.TimeLogID,
		WorkspaceID: in.WorkspaceID,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
	}
	l.log = append(l.log, spendTx)
	result.Spend = spendTx
	return result, nil
}

func (l *inMemoryLedger) ProjectBalance(_ context.Context, projectID string) (ProjectBalance, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.projectBalanceLocked(projectID), nil
}

func (l *inMemoryLedger) Transactions(_ context.Context, filter TransactionFilter) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, 0)
	for i := len(l.log) - 1; i >= 0; i-- {
		if !matchesFilter(l.log[i], filter) {
			continue
		}
		out = append(out, l.log[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

type transferMeta struct {
	CategoryID            string
	DestinationCategoryID string
	ProjectID             string
	WorkItemID            string
	WorkspaceID           string
	CreatedBy             string
}

// postTransferLocked writes both legs of a transfer and applies the balance
// deltas. Callers hold the wallet semaphores and the shared mutex, and have
// already validated overdraft policy for the source.
func (l *inMemoryLedger) postTransferLocked(from, to *memWallet, amount, inbound decimal.Decimal, description string, meta transferMeta) TransferResult {
	groupID := uuid.NewString()
	now := time.Now().UTC()

	outTx := Transaction{
		ID:              uuid.NewString(),
		Kind:            KindTransfer,
		Status:          StatusCompleted,
		Amount:          amount,
		Currency:        from.ref.Currency,
		Description:     description,
		SourceWalletID:  from.ref.ID,
		ProjectID:       meta.ProjectID,
		WorkItemID:      meta.WorkItemID,
		CategoryID:      meta.CategoryID,
		WorkspaceID:     meta.WorkspaceID,
		TransferGroupID: groupID,
		CreatedBy:       meta.CreatedBy,
		CreatedAt:       now,
	}
	inCategory := meta.DestinationCategoryID
	if inCategory == "" {
		inCategory = meta.CategoryID
	}
	inTx := Transaction{
		ID:                  uuid.NewString(),
		Kind:                KindTransfer,
		Status:              StatusCompleted,
		Amount:              inbound,
		Currency:            to.ref.Currency,
		Description:         description,
		DestinationWalletID: to.ref.ID,
		ProjectID:           meta.ProjectID,
		WorkItemID:          meta.WorkItemID,
		CategoryID:          inCategory,
		WorkspaceID:         meta.WorkspaceID,
		TransferGroupID:     groupID,
		CreatedBy:           meta.CreatedBy,
		CreatedAt:           now,
	}

	from.balance = from.balance.Sub(amount)
	to.balance = to.balance.Add(inbound)
	l.log = append(l.log, outTx, inTx)

	return TransferResult{
		Outbound:    outTx,
		Inbound:     inTx,
		FromBalance: from.balance,
		ToBalance:   to.balance,
	}
}

func (l *inMemoryLedger) projectBalanceLocked(projectID string) ProjectBalance {
	deposited, spent, held, released := decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	for _, t := range l.log {
		if t.ProjectID != projectID || t.Status != StatusCompleted {
			continue
		}
		switch t.Kind {
		case KindDeposit:
			deposited = deposited.Add(t.Amount)
		case KindSpend:
			spent = spent.Add(t.Amount)
		case KindHold:
			held = held.Add(t.Amount)
		case KindRelease:
			released = released.Add(t.Amount)
		}
	}
	onHold := held.Sub(released)
	return ProjectBalance{
		ProjectID: projectID,
		Deposited: deposited,
		Spent:     spent,
		Held:      held,
		Released:  released,
		OnHold:    onHold,
		Available: deposited.Sub(spent).Sub(onHold),
	}
}

func (l *inMemoryLedger) timeLogBilledLocked(timeLogID string) bool {
	for _, t := range l.log {
		if t.Kind == KindSpend && t.TimeLogID == timeLogID {
			return true
		}
	}
	return false
}

func (l *inMemoryLedger) wallet(id string) (*memWallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	if !w.ref.Active {
		return nil, ErrWalletInactive
	}
	return w, nil
}

func (l *inMemoryLedger) projectSem(projectID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.projects[projectID]
	if !ok {
		sem = make(chan struct{}, 1)
		l.projects[projectID] = sem
	}
	return sem
}

// acquire takes the single slot of sem or fails with ErrContention after the
// configured timeout.
func (l *inMemoryLedger) acquire(ctx context.Context, sem chan struct{}) (func(), error) {
	timer := time.NewTimer(l.lockTimeout)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-timer.C:
		return nil, ErrContention
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// acquireOrdered locks two wallets in ascending id order so concurrent
// opposite-direction transfers cannot deadlock.
func (l *inMemoryLedger) acquireOrdered(ctx context.Context, semA chan struct{}, idA string, semB chan struct{}, idB string) (func(), error) {
	first, second := semA, semB
	if idB < idA {
		first, second = semB, semA
	}
	releaseFirst, err := l.acquire(ctx, first)
	if err != nil {
		return nil, err
	}
	releaseSecond, err := l.acquire(ctx, second)
	if err != nil {
		releaseFirst()
		return nil, err
	}
	return func() {
		releaseSecond()
		releaseFirst()
	}, nil
}

func inboundAmount(from, to WalletRef, amount, target decimal.Decimal) (decimal.Decimal, error) {
	if from.Currency == to.Currency {
		return amount, nil
	}
	if target.IsZero() {
		return decimal.Decimal{}, ErrTargetAmountRequired
	}
	return normalizeAmount(target)
}
