package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"camera-kingdom/internal/handlers"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/metrics"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Products *handlers.ProductHandler
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Orders   *handlers.OrderHandler
}

func RegisterRoutes(router *gin.Engine, h Handlers, verifier *identity.Verifier, m *metrics.Metrics) {
	router.Use(m.Middleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/products", h.Products.ListProducts)
		v1.GET("/products/:id", h.Products.GetProduct)
	}

	user := v1.Group("", verifier.Middleware())
	{
		user.GET("/cart", h.Cart.GetCart)
		user.POST("/cart/items/:productId", h.Cart.AddItem)
		user.PUT("/cart/items/:productId", h.Cart.SetQuantity)
		user.DELETE("/cart/items/:productId", h.Cart.RemoveItem)
		user.POST("/cart/prune", h.Cart.Prune)
		user.POST("/logout", h.Cart.Logout)

		user.POST("/checkout", h.Checkout.CompleteOrder)

		user.GET("/me/orders", h.Orders.MyOrders)
		user.GET("/orders/:id", h.Orders.GetOrder)
		user.POST("/orders/:id/cancel", h.Orders.Cancel)
	}

	admin := v1.Group("/admin", verifier.Middleware(), identity.RequireAdmin())
	{
		admin.POST("/products", h.Products.CreateProduct)
		admin.DELETE("/products/:id", h.Products.DeleteProduct)

		admin.GET("/orders", h.Orders.ListOrders)
		admin.PATCH("/orders/:id", h.Orders.UpdateDetails)
		admin.DELETE("/orders/:id", h.Orders.DeleteOrder)
		admin.POST("/orders/:id/confirm", h.Orders.Confirm)
		admin.POST("/orders/:id/process", h.Orders.Process)
		admin.POST("/orders/:id/ship", h.Orders.Ship)
		admin.POST("/orders/:id/complete", h.Orders.Complete)
		admin.POST("/orders/:id/refund", h.Orders.Refund)
		admin.POST("/orders/:id/resume", h.Checkout.Resume)
		admin.POST("/orders/:id/resume-reversal", h.Orders.ResumeReversal)
	}
}
