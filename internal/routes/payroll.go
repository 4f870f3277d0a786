package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/office360/treasury/internal/payroll"
)

// RegisterPayrollRoutes wires payroll run endpoints.
func RegisterPayrollRoutes(r fiber.Router, h *payroll.Handler) {
	r.Post("/payroll/runs", h.CreateRun)
	r.Get("/payroll/runs", h.ListRuns)
	r.Get("/payroll/runs/:id", h.GetRun)
	r.Patch("/payroll/runs/:id/items/:itemId", h.UpdateItem)
	r.Post("/payroll/runs/:id/commit", h.CommitRun)
}
