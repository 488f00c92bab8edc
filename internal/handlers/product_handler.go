package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/cache"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

const (
	productKeyPrefix = "product:"
	listKeyPrefix    = "products:list:"
	productTTL       = 30 * time.Second
	listTTL          = 15 * time.Second
)

// ProductHandler serves the catalog. Stock shown here is informational; it is
// changed only by the stock ledger.
type ProductHandler struct {
	repo   repository.ProductRepository
	cache  *cache.Cache
	logger *zap.Logger
}

func NewProductHandler(repo repository.ProductRepository, c *cache.Cache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{repo: repo, cache: c, logger: logger}
}

// POST /v1/admin/products
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var product models.Product
	if err := c.ShouldBindJSON(&product); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	product.ID = ""

	if err := h.repo.Create(c.Request.Context(), &product); err != nil {
		writeError(c, h.logger, fmt.Errorf("create product: %w", err))
		return
	}

	h.cache.DeleteByPrefix(listKeyPrefix)
	h.logger.Info("product created", zap.String("product_id", product.ID), zap.Int("stock", product.Stock))
	c.JSON(http.StatusCreated, product)
}

// GET /v1/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id := c.Param("id")
	key := productKeyPrefix + id

	var cached models.Product
	if found, err := h.cache.Get(key, &cached); err == nil && found {
		c.JSON(http.StatusOK, cached)
		return
	}

	product, err := h.repo.FindByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, h.logger, errs.NotFound("product", id))
		return
	}
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("get product %s: %w", id, err))
		return
	}

	if err := h.cache.Set(key, product, productTTL); err != nil {
		h.logger.Warn("cache product", zap.String("product_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, product)
}

// GET /v1/products
func (h *ProductHandler) ListProducts(c *gin.Context) {
	page, pageSize := getPaginationParams(c)
	key := fmt.Sprintf("%sp%d_s%d", listKeyPrefix, page, pageSize)

	var cached ListResponse
	if found, err := h.cache.Get(key, &cached); err == nil && found {
		c.JSON(http.StatusOK, cached)
		return
	}

	products, err := h.repo.FindAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("list products: %w", err))
		return
	}

	start := min((page-1)*pageSize, len(products))
	end := min(start+pageSize, len(products))
	response := ListResponse{
		Page:     page,
		PageSize: pageSize,
		Total:    int64(len(products)),
		Data:     products[start:end],
	}

	if err := h.cache.Set(key, response, listTTL); err != nil {
		h.logger.Warn("cache product list", zap.Error(err))
	}
	c.JSON(http.StatusOK, response)
}

// DELETE /v1/admin/products/:id (soft delete)
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id := c.Param("id")

	err := h.repo.Delete(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(c, h.logger, errs.NotFound("product", id))
		return
	}
	if err != nil {
		writeError(c, h.logger, fmt.Errorf("delete product %s: %w", id, err))
		return
	}

	h.cache.Delete(productKeyPrefix + id)
	h.cache.DeleteByPrefix(listKeyPrefix)
	h.logger.Info("product deleted", zap.String("product_id", id))
	c.JSON(http.StatusOK, SuccessResponse{Message: "product deleted"})
}
