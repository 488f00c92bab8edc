package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/config"
	"camera-kingdom/internal/handlers"
	"camera-kingdom/internal/routes"
)

const shutdownTimeout = 10 * time.Second

// Application owns the HTTP server and the container behind it.
type Application struct {
	ctx       context.Context
	cancel    context.CancelFunc
	container *Container
	server    *http.Server
}

// NewApplication loads the container and mounts the routes. The returned
// application stops on SIGINT or SIGTERM.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	appCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	container, err := NewContainer(appCtx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build container: %w", err)
	}

	return &Application{
		ctx:       appCtx,
		cancel:    cancel,
		container: container,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           Router(container),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		},
	}, nil
}

// Router builds the gin engine over the container's services.
func Router(c *Container) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	routes.RegisterRoutes(router, routes.Handlers{
		Products: handlers.NewProductHandler(c.Store.Products, c.Cache, c.Logger),
		Cart:     handlers.NewCartHandler(c.Carts, c.Logger),
		Checkout: handlers.NewCheckoutHandler(c.Checkout, c.Carts, c.Coupons, c.Logger),
		Orders:   handlers.NewOrderHandler(c.Orders, c.History, c.Logger),
	}, c.Verifier, c.Metrics)
	return router
}

// Run serves until the context is canceled, then drains in-flight requests.
func (a *Application) Run() error {
	logger := a.container.Logger
	errCh := make(chan error, 1)

	go func() {
		logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve http: %w", err)
	case <-a.ctx.Done():
	}

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}

// Shutdown releases the container. Call it once Run returned.
func (a *Application) Shutdown() {
	a.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.container.Shutdown(ctx)
}
