package payroll

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/wallet"
)

// Handler exposes payroll runs over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type runLineRequest struct {
	EmployeeID  string `json:"employee_id"`
	Days        int    `json:"days"`
	Hours       string `json:"hours"`
	GrossAmount string `json:"gross_amount"`
	NetAmount   string `json:"net_amount"`
}

type createRunRequest struct {
	WorkspaceID string           `json:"workspace_id"`
	PeriodStart string           `json:"period_start"`
	PeriodEnd   string           `json:"period_end"`
	Currency    string           `json:"currency"`
	CreatedBy   string           `json:"created_by"`
	Lines       []runLineRequest `json:"lines"`
}

type commitRunRequest struct {
	SourceWalletID string `json:"source_wallet_id"`
	AllowOverdraft bool   `json:"allow_overdraft"`
	CreatedBy      string `json:"created_by"`
}

type updateItemRequest struct {
	NetAmount string `json:"net_amount"`
}

type itemResponse struct {
	ID            string `json:"id"`
	EmployeeID    string `json:"employee_id"`
	Days          int    `json:"days"`
	Hours         string `json:"hours"`
	GrossAmount   string `json:"gross_amount"`
	NetAmount     string `json:"net_amount"`
	TransactionID string `json:"transaction_id,omitempty"`
	Paid          bool   `json:"paid"`
}

type runResponse struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	PeriodStart string         `json:"period_start"`
	PeriodEnd   string         `json:"period_end"`
	Status      string         `json:"status"`
	Currency    string         `json:"currency"`
	Total       string         `json:"total"`
	PaidAt      string         `json:"paid_at,omitempty"`
	Items       []itemResponse `json:"items,omitempty"`
}

func toRunResponse(run Run, items []Item) runResponse {
	resp := runResponse{
		ID:          run.ID,
		WorkspaceID: run.WorkspaceID,
		PeriodStart: run.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   run.PeriodEnd.Format("2006-01-02"),
		Status:      string(run.Status),
		Currency:    run.Currency,
		Total:       run.Total.String(),
	}
	if run.PaidAt != nil {
		resp.PaidAt = run.PaidAt.Format(time.RFC3339)
	}
	for _, item := range items {
		resp.Items = append(resp.Items, itemResponse{
			ID:            item.ID,
			EmployeeID:    item.EmployeeID,
			Days:          item.Days,
			Hours:         item.Hours.String(),
			GrossAmount:   item.GrossAmount.String(),
			NetAmount:     item.NetAmount.String(),
			TransactionID: item.TransactionID,
			Paid:          item.Paid,
		})
	}
	return resp
}

// CreateRun handles POST /payroll/runs.
func (h *Handler) CreateRun(c *fiber.Ctx) error {
	var req createRunRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	periodStart, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid period_start")
	}
	periodEnd, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid period_end")
	}
	lines := make([]RunLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		line := RunLine{EmployeeID: l.EmployeeID, Days: l.Days}
		if line.Hours, err = parseOptionalDecimal(l.Hours); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid hours")
		}
		if line.GrossAmount, err = parseOptionalDecimal(l.GrossAmount); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid gross_amount")
		}
		if line.NetAmount, err = parseOptionalDecimal(l.NetAmount); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid net_amount")
		}
		lines = append(lines, line)
	}
	run, items, err := h.service.CreateRun(c.Context(), CreateRunInput{
		WorkspaceID: req.WorkspaceID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Currency:    req.Currency,
		CreatedBy:   req.CreatedBy,
		Lines:       lines,
	})
	if err != nil {
		return mapPayrollError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toRunResponse(run, items))
}

// GetRun handles GET /payroll/runs/:id.
func (h *Handler) GetRun(c *fiber.Ctx) error {
	run, items, err := h.service.Run(c.Context(), c.Params("id"))
	if err != nil {
		return mapPayrollError(err)
	}
	return c.JSON(toRunResponse(run, items))
}

// ListRuns handles GET /payroll/runs?workspace_id=...
func (h *Handler) ListRuns(c *fiber.Ctx) error {
	runs, err := h.service.ListRuns(c.Context(), c.Query("workspace_id"))
	if err != nil {
		return mapPayrollError(err)
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run, nil))
	}
	return c.JSON(fiber.Map{"runs": out, "count": len(out)})
}

// UpdateItem handles PATCH /payroll/runs/:id/items/:itemId.
func (h *Handler) UpdateItem(c *fiber.Ctx) error {
	var req updateItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	net, err := decimal.NewFromString(req.NetAmount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid net_amount")
	}
	if err := h.service.UpdateItemNet(c.Context(), c.Params("id"), c.Params("itemId"), net); err != nil {
		return mapPayrollError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CommitRun handles POST /payroll/runs/:id/commit.
func (h *Handler) CommitRun(c *fiber.Ctx) error {
	var req commitRunRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	run, err := h.service.CommitRun(c.Context(), CommitRunInput{
		RunID:          c.Params("id"),
		SourceWalletID: req.SourceWalletID,
		AllowOverdraft: req.AllowOverdraft,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return mapPayrollError(err)
	}
	items, err := h.service.repo.ItemsByRun(c.Context(), run.ID)
	if err != nil {
		return mapPayrollError(err)
	}
	return c.JSON(toRunResponse(run, items))
}

func parseOptionalDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(raw)
}

func mapPayrollError(err error) error {
	switch {
	case errors.Is(err, ErrRunNotFound), errors.Is(err, ErrItemNotFound),
		errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunNotDraft):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyRun), errors.Is(err, ErrMissingPaymentWallet),
		errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrWalletInactive),
		errors.Is(err, ledger.ErrSameWallet), errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrContention):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
