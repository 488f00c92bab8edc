package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

type ErrorResponse struct {
	Error     string               `json:"error"`
	Field     string               `json:"field,omitempty"`
	Code      string               `json:"code,omitempty"`
	Conflicts []errs.StockConflict `json:"conflicts,omitempty"`
	OrderID   string               `json:"orderId,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

type ListResponse struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Data     any   `json:"data"`
}

// writeError maps the error taxonomy onto status codes. Partial and
// compensation failures are matched before their wrapped causes: they are
// never retryable and never leak their internals to the client.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var ve *errs.ValidationError
	var sce *errs.StockConflictError
	body := ErrorResponse{Error: errs.UserMessage(err)}

	var status int
	switch {
	case errors.Is(err, errs.ErrCompensationFailed), errors.Is(err, errs.ErrPartialFailure):
		status = http.StatusInternalServerError
	case errors.As(err, &ve):
		status = http.StatusBadRequest
		body.Field, body.Code = ve.Field, ve.Code
	case errors.As(err, &sce):
		status = http.StatusConflict
		body.Conflicts = sce.Conflicts
	case errors.Is(err, errs.ErrStockConflict), errors.Is(err, errs.ErrIllegalTransition):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, body)
}

func principal(c *gin.Context) identity.Principal {
	p, _ := identity.FromContext(c)
	return p
}

// getPaginationParams reads page and page_size, falling back to the defaults
// on anything out of range.
func getPaginationParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(defaultPage)))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))

	if page < 1 {
		page = defaultPage
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

// buildListOptions turns ?sort=field:desc into repository list options. Only
// the first sort key is used.
func buildListOptions(c *gin.Context) repository.ListOptions {
	page, pageSize := getPaginationParams(c)
	opts := repository.ListOptions{Page: page, PageSize: pageSize, SortBy: "orderNumber", Desc: true}

	sortQuery := strings.TrimSpace(c.Query("sort"))
	if sortQuery == "" {
		return opts
	}
	first, _, _ := strings.Cut(sortQuery, ",")
	field, order, _ := strings.Cut(strings.TrimSpace(first), ":")
	switch field {
	case "orderNumber", "createdAt", "status", "total":
		opts.SortBy = field
		opts.Desc = order == "desc"
	}
	return opts
}
