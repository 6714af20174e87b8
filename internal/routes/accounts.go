package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/payvost/corebanking/internal/accounts"
)

// RegisterAccountRoutes wires account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler) {
    r.Post("/account", h.Create)
    r.Get("/balance/:accountId", h.Balance)
    r.Get("/account/:accountId/entries", h.Entries)
}
