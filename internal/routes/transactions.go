package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/office360/treasury/internal/transactions"
)

// RegisterTransactionRoutes wires transaction log endpoints.
func RegisterTransactionRoutes(r fiber.Router, h *transactions.Handler) {
	r.Post("/transactions/deposit", h.Deposit)
	r.Post("/transactions/spend", h.Spend)
	r.Post("/transactions/transfer", h.Transfer)
	r.Get("/transactions", h.List)
}
