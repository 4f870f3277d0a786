package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/office360/treasury/internal/budget"
)

// RegisterBudgetRoutes wires project budget endpoints.
func RegisterBudgetRoutes(r fiber.Router, h *budget.Handler) {
	r.Post("/budget/holds", h.Hold)
	r.Post("/budget/commits", h.Commit)
	r.Get("/projects/:projectId/balance", h.ProjectBalance)
}
