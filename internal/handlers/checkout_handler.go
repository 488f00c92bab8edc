package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/cart"
	"camera-kingdom/internal/checkout"
	"camera-kingdom/internal/coupons"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
)

type CheckoutHandler struct {
	orchestrator *checkout.Orchestrator
	carts        *cart.Service
	coupons      *coupons.Lookup
	logger       *zap.Logger
}

func NewCheckoutHandler(o *checkout.Orchestrator, carts *cart.Service, lookup *coupons.Lookup, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{orchestrator: o, carts: carts, coupons: lookup, logger: logger}
}

// checkoutRequest is the checkout form. The line items always come from the
// caller's server-side cart.
type checkoutRequest struct {
	Contact      checkout.Contact `json:"contact"`
	Shipping     models.Shipping  `json:"shipping"`
	Card         checkout.Card    `json:"card"`
	CouponCode   string           `json:"couponCode"`
	Installments int              `json:"installments"`
	Confirmed    bool             `json:"confirmed"`
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
}

// POST /v1/checkout
func (h *CheckoutHandler) CompleteOrder(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	p := principal(c)

	lines, err := h.carts.Get(ctx, p.UserID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var coupon *models.Coupon
	if strings.TrimSpace(req.CouponCode) != "" {
		if coupon, err = h.coupons.Find(ctx, req.CouponCode); err != nil {
			writeError(c, h.logger, err)
			return
		}
	}

	id, err := h.orchestrator.CompleteOrder(ctx, p, checkout.Request{
		Lines:        lines,
		Contact:      req.Contact,
		Shipping:     req.Shipping,
		Card:         req.Card,
		Coupon:       coupon,
		Installments: req.Installments,
		Confirmed:    req.Confirmed,
	})
	if err != nil {
		// The order exists; support needs its id to resume it.
		if id != "" && errors.Is(err, errs.ErrPartialFailure) {
			h.logger.Error("checkout left a pending order", zap.String("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errs.UserMessage(err), OrderID: id})
			return
		}
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, checkoutResponse{OrderID: id})
}

// POST /v1/admin/orders/:id/resume
func (h *CheckoutHandler) Resume(c *gin.Context) {
	if err := h.orchestrator.Resume(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "checkout resumed"})
}
