package payroll

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepository is a map-backed Repository used by tests and local runs.
type MemoryRepository struct {
	mu    sync.RWMutex
	runs  map[string]Run
	items map[string][]Item
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		runs:  make(map[string]Run),
		items: make(map[string][]Item),
	}
}

func (r *MemoryRepository) CreateRun(_ context.Context, run Run, items []Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	r.items[run.ID] = append([]Item(nil), items...)
	return nil
}

func (r *MemoryRepository) GetRun(_ context.Context, runID string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[runID]
	if !ok {
		return Run{}, ErrRunNotFound
	}
	return run, nil
}

func (r *MemoryRepository) ListRuns(_ context.Context, workspaceID string) ([]Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var runs []Run
	for _, run := range r.runs {
		if run.WorkspaceID == workspaceID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].CreatedAt.After(runs[j].CreatedAt) })
	return runs, nil
}

func (r *MemoryRepository) ItemsByRun(_ context.Context, runID string) ([]Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := append([]Item(nil), r.items[runID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].EmployeeID < items[j].EmployeeID })
	return items, nil
}

func (r *MemoryRepository) UpdateItemNet(_ context.Context, runID, itemID string, net decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status != StatusDraft {
		return ErrRunNotDraft
	}
	items := r.items[runID]
	for i := range items {
		if items[i].ID == itemID {
			items[i].NetAmount = net
			r.items[runID] = items
			return nil
		}
	}
	return ErrItemNotFound
}

// ClaimDraft is the compare-and-set for the draft to paid transition; the
// check and the flip happen under one lock.
func (r *MemoryRepository) ClaimDraft(_ context.Context, runID string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status != StatusDraft {
		return ErrRunNotDraft
	}
	run.Status = StatusPaid
	run.PaidAt = &paidAt
	r.runs[runID] = run
	return nil
}

func (r *MemoryRepository) ReleaseClaim(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return ErrRunNotFound
	}
	if run.Status == StatusPaid {
		run.Status = StatusDraft
		run.PaidAt = nil
		r.runs[runID] = run
	}
	return nil
}

func (r *MemoryRepository) MarkItemsPaid(_ context.Context, runID string, transactionIDs map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[runID]; !ok {
		return ErrRunNotFound
	}
	items := r.items[runID]
	for i := range items {
		if txID, ok := transactionIDs[items[i].ID]; ok {
			items[i].Paid = true
			items[i].TransactionID = txID
		}
	}
	r.items[runID] = items
	return nil
}
