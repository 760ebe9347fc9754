package routes

import (
    "github.com/gofiber/fiber/v2"

    "github.com/yotta-io/tokenledger/internal/registry"
)

// RegisterRegistryRoutes wires the permission registry endpoints.
func RegisterRegistryRoutes(r fiber.Router, h *registry.Handler) {
    group := r.Group("/registry")
    group.Post("/grants", h.Grant)
    group.Get("/issuers/:issuer", h.Issuer)
    group.Get("/tokens/:code", h.Token)
}
