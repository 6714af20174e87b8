package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/payvost/corebanking/internal/transfers"
)

// RegisterTransferRoutes wires transfer endpoints.
func RegisterTransferRoutes(r fiber.Router, h *transfers.Handler, limiter fiber.Handler) {
    r.Post("/transfer", limiter, h.Transfer)
    r.Get("/transfer/:transferId", h.Get)
}
