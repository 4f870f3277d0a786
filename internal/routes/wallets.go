package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/office360/treasury/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets", h.List)
	r.Get("/wallets/:walletId", h.Get)
	r.Get("/wallets/:walletId/balance", h.Balance)
	r.Post("/wallets/:walletId/deactivate", h.Deactivate)
	r.Post("/wallets/:walletId/reconcile", h.Reconcile)
}
