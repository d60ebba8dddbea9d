package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// OrdersHandler lists the acting user's orders so the client can attach one to
// a new ticket.
type OrdersHandler struct {
	orders repository.OrderRepository
}

// NewOrdersHandler constructs handler.
func NewOrdersHandler(orders repository.OrderRepository) *OrdersHandler {
	return &OrdersHandler{orders: orders}
}

// List GET /orders.
func (h *OrdersHandler) List(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	orders, err := h.orders.ListByUser(c.UserContext(), user.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for _, order := range orders {
		items = append(items, dto.OrderResponse{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			TotalPrice:  order.TotalPrice,
			Status:      order.Status,
			CreatedAt:   order.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
