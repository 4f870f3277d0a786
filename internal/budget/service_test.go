package budget

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/office360/treasury/internal/ledger"
)

func seededService(t *testing.T, projectID, budget string) (*Service, ledger.Ledger) {
	t.Helper()
	engine := ledger.NewInMemory()
	amount, err := decimal.NewFromString(budget)
	require.NoError(t, err)
	ledger.SeedProjectBudget(engine, projectID, amount)
	return NewService(engine), engine
}

func TestHoldReducesAvailable(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "proj-1", "300")

	hold, err := svc.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)
	assert.Equal(t, ledger.KindHold, hold.Kind)

	balance, err := svc.ProjectBalance(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(100)), "available = %s", balance.Available)
	assert.True(t, balance.OnHold.Equal(decimal.NewFromInt(200)), "on_hold = %s", balance.OnHold)
}

func TestCommitOverHoldWithinBudget(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "proj-1", "300")

	_, err := svc.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	res, err := svc.Commit(ctx, CommitInput{
		ProjectID:  "proj-1",
		WorkItemID: "task-1",
		TimeLogID:  "log-1",
		Amount:     decimal.NewFromInt(250),
	})
	require.NoError(t, err)
	require.NotNil(t, res.Release)
	assert.True(t, res.Release.Amount.Equal(decimal.NewFromInt(200)))
	assert.True(t, res.Spend.Amount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, "log-1", res.Spend.TimeLogID)

	balance, err := svc.ProjectBalance(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, balance.Available.Equal(decimal.NewFromInt(50)), "available = %s", balance.Available)
	assert.True(t, balance.OnHold.IsZero(), "on_hold = %s", balance.OnHold)
}

func TestCommitBeyondBudgetRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "proj-1", "300")

	_, err := svc.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: decimal.NewFromInt(200)})
	require.NoError(t, err)

	_, err = svc.Commit(ctx, CommitInput{
		ProjectID:  "proj-1",
		WorkItemID: "task-1",
		TimeLogID:  "log-1",
		Amount:     decimal.NewFromInt(350),
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	balance, err := svc.ProjectBalance(ctx, "proj-1")
	require.NoError(t, err)
	assert.True(t, balance.OnHold.Equal(decimal.NewFromInt(200)), "hold must survive a failed commit, on_hold = %s", balance.OnHold)
}

func TestCommitTwiceReturnsAlreadySettled(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "proj-1", "500")

	_, err := svc.Hold(ctx, HoldInput{ProjectID: "proj-1", WorkItemID: "task-1", Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	commit := CommitInput{ProjectID: "proj-1", WorkItemID: "task-1", TimeLogID: "log-1", Amount: decimal.NewFromInt(100)}
	_, err = svc.Commit(ctx, commit)
	require.NoError(t, err)

	_, err = svc.Commit(ctx, commit)
	assert.ErrorIs(t, err, ledger.ErrAlreadySettled)
}

func TestMissingReferencesRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := seededService(t, "proj-1", "100")

	_, err := svc.Hold(ctx, HoldInput{WorkItemID: "task-1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrMissingProject)

	_, err = svc.Hold(ctx, HoldInput{ProjectID: "proj-1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrMissingWorkItem)

	_, err = svc.Commit(ctx, CommitInput{ProjectID: "proj-1", Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, ErrMissingWorkItem)

	_, err = svc.ProjectBalance(ctx, "")
	assert.ErrorIs(t, err, ErrMissingProject)
}
