package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/history"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/orders"
)

type OrderHandler struct {
	manager *orders.Manager
	history *history.Syncer
	logger  *zap.Logger
}

func NewOrderHandler(manager *orders.Manager, h *history.Syncer, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{manager: manager, history: h, logger: logger}
}

// GET /v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.manager.Get(c.Request.Context(), c.Param("id"), principal(c))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GET /v1/me/orders
func (h *OrderHandler) MyOrders(c *gin.Context) {
	list, err := h.history.Orders(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// POST /v1/orders/:id/cancel
func (h *OrderHandler) Cancel(c *gin.Context) {
	order, err := h.manager.Cancel(c.Request.Context(), c.Param("id"), principal(c))
	h.respond(c, order, err)
}

// GET /v1/admin/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	opts := buildListOptions(c)
	page, err := h.manager.List(c.Request.Context(), opts)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ListResponse{
		Page:     opts.Page,
		PageSize: opts.PageSize,
		Total:    page.Total,
		Data:     page.Orders,
	})
}

// POST /v1/admin/orders/:id/confirm
func (h *OrderHandler) Confirm(c *gin.Context) { h.transition(c, h.manager.Confirm) }

// POST /v1/admin/orders/:id/process
func (h *OrderHandler) Process(c *gin.Context) { h.transition(c, h.manager.Process) }

// POST /v1/admin/orders/:id/ship
func (h *OrderHandler) Ship(c *gin.Context) { h.transition(c, h.manager.Ship) }

// POST /v1/admin/orders/:id/complete
func (h *OrderHandler) Complete(c *gin.Context) { h.transition(c, h.manager.Complete) }

// POST /v1/admin/orders/:id/refund
func (h *OrderHandler) Refund(c *gin.Context) { h.transition(c, h.manager.Refund) }

// POST /v1/admin/orders/:id/resume-reversal
func (h *OrderHandler) ResumeReversal(c *gin.Context) { h.transition(c, h.manager.ResumeReversal) }

// PATCH /v1/admin/orders/:id
func (h *OrderHandler) UpdateDetails(c *gin.Context) {
	var details models.OrderDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if details.OrderNumber == nil && details.Customer == nil && details.Shipping == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no valid fields to update"})
		return
	}

	order, err := h.manager.UpdateDetails(c.Request.Context(), c.Param("id"), details)
	h.respond(c, order, err)
}

// DELETE /v1/admin/orders/:id
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	if err := h.manager.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "order deleted"})
}

func (h *OrderHandler) transition(c *gin.Context, op func(context.Context, string) (*models.Order, error)) {
	order, err := op(c.Request.Context(), c.Param("id"))
	h.respond(c, order, err)
}

func (h *OrderHandler) respond(c *gin.Context, order *models.Order, err error) {
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
