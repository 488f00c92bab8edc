package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/cart"
	"camera-kingdom/internal/models"
)

type CartHandler struct {
	carts  *cart.Service
	logger *zap.Logger
}

func NewCartHandler(carts *cart.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

type cartResponse struct {
	Lines   []models.CartLine `json:"lines"`
	Removed []models.CartLine `json:"removed,omitempty"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// GET /v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	lines, err := h.carts.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: lines})
}

// POST /v1/cart/items/:productId
func (h *CartHandler) AddItem(c *gin.Context) {
	lines, err := h.carts.Add(c.Request.Context(), principal(c).UserID, c.Param("productId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: lines})
}

// PUT /v1/cart/items/:productId
func (h *CartHandler) SetQuantity(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	lines, err := h.carts.SetQuantity(c.Request.Context(), principal(c).UserID, c.Param("productId"), req.Quantity)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: lines})
}

// DELETE /v1/cart/items/:productId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	lines, err := h.carts.Remove(c.Request.Context(), principal(c).UserID, c.Param("productId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: lines})
}

// POST /v1/cart/prune
func (h *CartHandler) Prune(c *gin.Context) {
	ctx := c.Request.Context()
	userID := principal(c).UserID

	removed, err := h.carts.PruneUnavailable(ctx, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	lines, err := h.carts.Get(ctx, userID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cartResponse{Lines: lines, Removed: removed})
}

// POST /v1/logout
func (h *CartHandler) Logout(c *gin.Context) {
	h.carts.Logout(principal(c).UserID)
	c.JSON(http.StatusOK, SuccessResponse{Message: "logged out"})
}
