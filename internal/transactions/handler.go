package transactions

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
	"github.com/office360/treasury/internal/wallet"
)

// Handler exposes ledger postings over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	WalletID    string `json:"wallet_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
	CategoryID  string `json:"category_id"`
	CreatedBy   string `json:"created_by"`
}

type spendRequest struct {
	WalletID       string `json:"wallet_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	AllowOverdraft bool   `json:"allow_overdraft"`
	Description    string `json:"description"`
	ProjectID      string `json:"project_id"`
	WorkItemID     string `json:"work_item_id"`
	CategoryID     string `json:"category_id"`
	CreatedBy      string `json:"created_by"`
}

type transferRequest struct {
	FromWalletID   string `json:"from_wallet_id"`
	ToWalletID     string `json:"to_wallet_id"`
	Amount         string `json:"amount"`
	TargetAmount   string `json:"target_amount"`
	AllowOverdraft bool   `json:"allow_overdraft"`
	Description    string `json:"description"`
	ProjectID      string `json:"project_id"`
	CategoryID     string `json:"category_id"`
	CreatedBy      string `json:"created_by"`
}

type transactionResponse struct {
	ID                  string `json:"id"`
	Kind                string `json:"kind"`
	Status              string `json:"status"`
	Amount              string `json:"amount"`
	Currency            string `json:"currency"`
	Description         string `json:"description,omitempty"`
	SourceWalletID      string `json:"source_wallet_id,omitempty"`
	DestinationWalletID string `json:"destination_wallet_id,omitempty"`
	ProjectID           string `json:"project_id,omitempty"`
	WorkItemID          string `json:"work_item_id,omitempty"`
	TimeLogID           string `json:"time_log_id,omitempty"`
	CategoryID          string `json:"category_id,omitempty"`
	TransferGroupID     string `json:"transfer_group_id,omitempty"`
	CreatedAt           string `json:"created_at"`
}

func toTransactionResponse(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:                  t.ID,
		Kind:                string(t.Kind),
		Status:              string(t.Status),
		Amount:              t.Amount.String(),
		Currency:            t.Currency,
		Description:         t.Description,
		SourceWalletID:      t.SourceWalletID,
		DestinationWalletID: t.DestinationWalletID,
		ProjectID:           t.ProjectID,
		WorkItemID:          t.WorkItemID,
		TimeLogID:           t.TimeLogID,
		CategoryID:          t.CategoryID,
		TransferGroupID:     t.TransferGroupID,
		CreatedAt:           t.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// Deposit handles POST /transactions/deposit.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	tx, err := h.service.Deposit(c.Context(), DepositInput{
		WalletID:    req.WalletID,
		Amount:      amount,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		CategoryID:  req.CategoryID,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTransactionResponse(tx))
}

// Spend handles POST /transactions/spend.
func (h *Handler) Spend(c *fiber.Ctx) error {
	var req spendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	tx, err := h.service.Spend(c.Context(), SpendInput{
		WalletID:       req.WalletID,
		Amount:         amount,
		Currency:       req.Currency,
		AllowOverdraft: req.AllowOverdraft,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		WorkItemID:     req.WorkItemID,
		CategoryID:     req.CategoryID,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTransactionResponse(tx))
}

// Transfer handles POST /transactions/transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	target := decimal.Decimal{}
	if req.TargetAmount != "" {
		target, err = parseAmount(req.TargetAmount)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid target_amount")
		}
	}
	out, err := h.service.Transfer(c.Context(), TransferInput{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Amount:         amount,
		TargetAmount:   target,
		AllowOverdraft: req.AllowOverdraft,
		Description:    req.Description,
		ProjectID:      req.ProjectID,
		CategoryID:     req.CategoryID,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return mapLedgerError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"outbound":     toTransactionResponse(out.Result.Outbound),
		"inbound":      toTransactionResponse(out.Result.Inbound),
		"from_balance": out.Result.FromBalance.String(),
		"to_balance":   out.Result.ToBalance.String(),
	})
}

// List handles GET /transactions.
func (h *Handler) List(c *fiber.Ctx) error {
	filter := ledger.TransactionFilter{
		WalletID:   c.Query("wallet_id"),
		ProjectID:  c.Query("project_id"),
		WorkItemID: c.Query("work_item_id"),
		Kind:       ledger.Kind(c.Query("kind")),
		Status:     ledger.Status(c.Query("status")),
		Limit:      c.QueryInt("limit"),
	}
	items, err := h.service.List(c.Context(), filter)
	if err != nil {
		return mapLedgerError(err)
	}
	out := make([]transactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, toTransactionResponse(t))
	}
	return c.JSON(fiber.Map{"transactions": out, "count": len(out)})
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, errors.New("amount required")
	}
	return decimal.NewFromString(raw)
}

func mapLedgerError(err error) error {
	switch {
	case errors.Is(err, wallet.ErrNotFound), errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrSameWallet),
		errors.Is(err, ledger.ErrTargetAmountRequired),
		errors.Is(err, ledger.ErrWalletInactive):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrAlreadySettled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrContention):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
