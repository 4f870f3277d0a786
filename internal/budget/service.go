package budget

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
)

// ErrMissingProject is returned when a budget operation arrives without a
// project reference.
var ErrMissingProject = errors.New("project id is required")

// ErrMissingWorkItem is returned when a hold or commit does not name the
// work item it reserves funds for.
var ErrMissingWorkItem = errors.New("work item id is required")

// Service drives project budget reservations on top of the ledger engine.
// A hold earmarks part of the project budget for a work item; committing a
// time log releases the outstanding hold and records the actual cost.
type Service struct {
	ledger ledger.Ledger
}

func NewService(engine ledger.Ledger) *Service {
	return &Service{ledger: engine}
}

// HoldInput reserves budget for a work item.
type HoldInput struct {
	ProjectID   string
	WorkItemID  string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CreatedBy   string
}

// Hold places a reservation against the project's available budget.
func (s *Service) Hold(ctx context.Context, input HoldInput) (ledger.Transaction, error) {
	if input.ProjectID == "" {
		return ledger.Transaction{}, ErrMissingProject
	}
	if input.WorkItemID == "" {
		return ledger.Transaction{}, ErrMissingWorkItem
	}
	return s.ledger.Hold(ctx, ledger.HoldInput{
		ProjectID:   input.ProjectID,
		WorkItemID:  input.WorkItemID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Description: input.Description,
		CreatedBy:   input.CreatedBy,
	})
}

// CommitInput settles a work item's time log at its actual cost.
type CommitInput struct {
	ProjectID   string
	WorkItemID  string
	TimeLogID   string
	Amount      decimal.Decimal
	Currency    string
	Description string
	CreatedBy   string
}

// Commit releases whatever is still held for the work item and spends the
// actual amount. The actual amount may exceed the hold as long as the
// project budget covers the difference.
func (s *Service) Commit(ctx context.Context, input CommitInput) (ledger.CommitResult, error) {
	if input.ProjectID == "" {
		return ledger.CommitResult{}, ErrMissingProject
	}
	if input.WorkItemID == "" {
		return ledger.CommitResult{}, ErrMissingWorkItem
	}
	return s.ledger.Commit(ctx, ledger.CommitInput{
		ProjectID:    input.ProjectID,
		WorkItemID:   input.WorkItemID,
		TimeLogID:    input.TimeLogID,
		ActualAmount: input.Amount,
		Currency:     input.Currency,
		Description:  input.Description,
		CreatedBy:    input.CreatedBy,
	})
}

// ProjectBalance derives the project's budget summary from the ledger.
func (s *Service) ProjectBalance(ctx context.Context, projectID string) (ledger.ProjectBalance, error) {
	if projectID == "" {
		return ledger.ProjectBalance{}, ErrMissingProject
	}
	return s.ledger.ProjectBalance(ctx, projectID)
}
