package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the lifecycle state of a payroll run. Runs are assembled as
// drafts and become paid in a single settlement step.
type RunStatus string

const (
	StatusDraft RunStatus = "draft"
	StatusPaid  RunStatus = "paid"
)

// Run is one payroll cycle for a workspace.
type Run struct {
	ID          string
	WorkspaceID string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      RunStatus
	Currency    string
	// Total is the sum of the items' net amounts. It is derived from the
	// items on read, never stored.
	Total     decimal.Decimal
	CreatedBy string
	CreatedAt time.Time
	PaidAt    *time.Time
}

// Item is one employee's payout line inside a run. NetAmount is what the
// settlement actually transfers; GrossAmount, Days and Hours are the inputs
// it was computed from.
type Item struct {
	ID            string
	RunID         string
	EmployeeID    string
	Days          int
	Hours         decimal.Decimal
	GrossAmount   decimal.Decimal
	NetAmount     decimal.Decimal
	TransactionID string
	Paid          bool
}
