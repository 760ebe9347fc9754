package registry

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/yotta-io/tokenledger/internal/middleware"
)

// Handler exposes registry endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a registry HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type grantRequest struct {
	Issuer string `json:"issuer"`
}

func recordJSON(rec Record) fiber.Map {
	return fiber.Map{
		"issuer":        rec.Issuer,
		"reg_count":     rec.RegCount,
		"total_count":   rec.TotalCount,
		"next_token_no": rec.NextTokenNo,
		"pending":       rec.Pending(),
		"updated_at":    rec.UpdatedAt,
	}
}

func respondError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPendingGrant):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// Grant sells one creation permission to an issuer.
func (h *Handler) Grant(c *fiber.Ctx) error {
	var req grantRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Issuer == "" {
		return fiber.NewError(http.StatusBadRequest, "issuer is required")
	}
	rec, err := h.service.Grant(c.UserContext(), middleware.Actor(c), req.Issuer)
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(recordJSON(rec))
}

// Issuer returns an issuer's permission record.
func (h *Handler) Issuer(c *fiber.Ctx) error {
	rec, err := h.service.Record(c.UserContext(), c.Params("issuer"))
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(recordJSON(rec))
}

// Token returns registered currency metadata.
func (h *Handler) Token(c *fiber.Ctx) error {
	info, err := h.service.Token(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"token_no":      info.TokenNo,
		"code":          info.Code,
		"precision":     info.Precision,
		"name":          info.Name,
		"memo":          info.Memo,
		"issuer":        info.Issuer,
		"supply":        info.Supply,
		"max_supply":    info.MaxSupply,
		"registry":      info.Registry,
		"registered_at": info.RegisteredAt,
		"updated_at":    info.UpdatedAt,
	})
}
