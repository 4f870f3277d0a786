package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID     string `json:"owner_id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Currency    string `json:"currency"`
}

type walletResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Active      bool   `json:"active"`
}

func toResponse(w Wallet) walletResponse {
	return walletResponse{
		ID:          w.ID,
		OwnerID:     w.OwnerID,
		WorkspaceID: w.WorkspaceID,
		Name:        w.Name,
		Type:        string(w.Type),
		Currency:    w.Currency,
		Balance:     w.Balance.String(),
		Active:      w.Active,
	}
}

// Create provisions a wallet for a person or a workspace.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{
		OwnerID:     req.OwnerID,
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Type:        Type(req.Type),
		Currency:    req.Currency,
	})
	if err != nil {
		if errors.Is(err, ErrMissingOwner) || errors.Is(err, ErrAmbiguousOwner) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toResponse(w))
}

// List returns the wallets of an owner or a workspace.
func (h *Handler) List(c *fiber.Ctx) error {
	ownerID := c.Query("owner_id")
	workspaceID := c.Query("workspace_id")

	var (
		wallets []Wallet
		err     error
	)
	switch {
	case ownerID != "" && workspaceID != "":
		return fiber.NewError(http.StatusBadRequest, ErrAmbiguousOwner.Error())
	case ownerID != "":
		wallets, err = h.service.ListByOwner(c.UserContext(), ownerID)
	case workspaceID != "":
		wallets, err = h.service.ListByWorkspace(c.UserContext(), workspaceID)
	default:
		return fiber.NewError(http.StatusBadRequest, "owner_id or workspace_id is required")
	}
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, toResponse(w))
	}
	return c.JSON(fiber.Map{"wallets": out, "count": len(out)})
}

// Get returns wallet metadata with its current balance.
func (h *Handler) Get(c *fiber.Ctx) error {
	w, err := h.service.Get(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(toResponse(w))
}

// Balance returns the wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": balance.WalletID,
		"balance":   balance.Amount.String(),
		"currency":  balance.Currency,
		"timestamp": balance.AsOf,
	})
}

// Deactivate soft-deactivates a wallet.
func (h *Handler) Deactivate(c *fiber.Ctx) error {
	if err := h.service.Deactivate(c.UserContext(), c.Params("walletId")); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}

// Reconcile recomputes the wallet balance from the ledger.
func (h *Handler) Reconcile(c *fiber.Ctx) error {
	balance, err := h.service.Reconcile(c.UserContext(), c.Params("walletId"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": balance.WalletID,
		"balance":   balance.Amount.String(),
		"currency":  balance.Currency,
		"timestamp": balance.AsOf,
	})
}
