// Package coupons resolves coupon codes to discount descriptors.
package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"camera-kingdom/internal/cache"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

const keyPrefix = "coupon:"

type Lookup struct {
	coupons repository.CouponRepository
	cache   *cache.Cache
	logger  *zap.Logger
}

func NewLookup(coupons repository.CouponRepository, c *cache.Cache, logger *zap.Logger) *Lookup {
	return &Lookup{coupons: coupons, cache: c, logger: logger}
}

// Find returns the coupon for code. Codes are case-insensitive. An unknown
// code is a validation error on the coupon field.
func (l *Lookup) Find(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, errs.Invalid("coupon", "required", "coupon code is required")
	}

	var cached models.Coupon
	if found, err := l.cache.Get(keyPrefix+code, &cached); err == nil && found {
		return &cached, nil
	}

	coupon, err := l.coupons.FindByCode(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errs.Invalid("coupon", "unknown_coupon", fmt.Sprintf("coupon %s does not exist", code))
	}
	if err != nil {
		return nil, fmt.Errorf("look up coupon %s: %w", code, err)
	}
	if coupon.DiscountPercent <= 0 || coupon.DiscountPercent > 100 {
		return nil, errs.Invalid("coupon", "invalid_discount",
			fmt.Sprintf("coupon %s has an invalid discount of %v%%", code, coupon.DiscountPercent))
	}

	if err := l.cache.Set(keyPrefix+code, coupon); err != nil {
		l.logger.Warn("cache coupon", zap.String("coupon", code), zap.Error(err))
	}
	return coupon, nil
}

// Flush forgets every cached coupon.
func (l *Lookup) Flush() {
	l.cache.DeleteByPrefix(keyPrefix)
}
