package budget

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/office360/treasury/internal/ledger"
)

// Handler exposes project budget reservations over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type holdRequest struct {
	ProjectID   string `json:"project_id"`
	WorkItemID  string `json:"work_item_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type commitRequest struct {
	ProjectID   string `json:"project_id"`
	WorkItemID  string `json:"work_item_id"`
	TimeLogID   string `json:"time_log_id"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

// Hold handles POST /budget/holds.
func (h *Handler) Hold(c *fiber.Ctx) error {
	var req holdRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	tx, err := h.service.Hold(c.Context(), HoldInput{
		ProjectID:   req.ProjectID,
		WorkItemID:  req.WorkItemID,
		Amount:      amount,
		Currency:    req.Currency,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return mapBudgetError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":           tx.ID,
		"kind":         string(tx.Kind),
		"amount":       tx.Amount.String(),
		"currency":     tx.Currency,
		"project_id":   tx.ProjectID,
		"work_item_id": tx.WorkItemID,
	})
}

// Commit handles POST /budget/commits.
func (h *Handler) Commit(c *fiber.Ctx) error {
	var req commitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	res, err := h.service.Commit(c.Context(), CommitInput{
		ProjectID:   req.ProjectID,
		WorkItemID:  req.WorkItemID,
		TimeLogID:   req.TimeLogID,
		Amount:      amount,
		Currency:    req.Currency,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		return mapBudgetError(err)
	}
	body := fiber.Map{
		"spend": fiber.Map{
			"id":          res.Spend.ID,
			"amount":      res.Spend.Amount.String(),
			"time_log_id": res.Spend.TimeLogID,
		},
	}
	if res.Release != nil {
		body["release"] = fiber.Map{
			"id":     res.Release.ID,
			"amount": res.Release.Amount.String(),
		}
	}
	return c.Status(fiber.StatusCreated).JSON(body)
}

// ProjectBalance handles GET /projects/:projectId/balance.
func (h *Handler) ProjectBalance(c *fiber.Ctx) error {
	balance, err := h.service.ProjectBalance(c.Context(), c.Params("projectId"))
	if err != nil {
		return mapBudgetError(err)
	}
	return c.JSON(fiber.Map{
		"project_id": balance.ProjectID,
		"deposited":  balance.Deposited.String(),
		"spent":      balance.Spent.String(),
		"held":       balance.Held.String(),
		"released":   balance.Released.String(),
		"on_hold":    balance.OnHold.String(),
		"available":  balance.Available.String(),
	})
}

func mapBudgetError(err error) error {
	switch {
	case errors.Is(err, ErrMissingProject), errors.Is(err, ErrMissingWorkItem),
		errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrAlreadySettled):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrContention):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
