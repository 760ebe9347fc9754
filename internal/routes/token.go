package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/yotta-io/tokenledger/internal/token"
)

// RegisterTokenRoutes wires currency administration, balances, locks and
// transfers.
func RegisterTokenRoutes(r fiber.Router, h *token.Handler) {
    r.Post("/registry-pointer", h.SetRegistry)

    r.Post("/currencies", h.Create)
    r.Get("/currencies/:code", h.Currency)
    r.Get("/currencies/:code/rules/:id", h.Rule)
    r.Post("/issues", h.Issue)
    r.Post("/extime", h.SetExTime)
    r.Post("/pools", h.AddPool)
    r.Delete("/pools/:account", h.RemovePool)
    r.Post("/rules", h.AddRule)

    r.Post("/balances", h.Open)
    r.Delete("/balances", h.Close)
    r.Get("/accounts/:account/balances/:code", h.Position)
    r.Get("/accounts/:account/locks/:code", h.Locks)

    r.Post("/transfers", h.Transfer)
    r.Post("/transfers/batch", h.BatchTransfer)
    r.Post("/transfers/locked", h.LockedTransfer)
    r.Post("/unlocks", h.Unlock)

    r.Post("/delegations", h.Approve)
    r.Post("/transfers/delegated", h.DelegatedTransfer)
}
