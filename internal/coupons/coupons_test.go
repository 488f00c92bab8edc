package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"camera-kingdom/internal/cache"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
	"camera-kingdom/internal/repository/mocks"
)

func TestFindCachesCoupons(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockCouponRepository(ctrl)
	c := cache.New(time.Minute, 0)
	defer c.Close()
	l := NewLookup(repo, c, zap.NewNop())

	repo.EXPECT().FindByCode(gomock.Any(), "SPRING10").
		Return(&models.Coupon{Code: "SPRING10", DiscountPercent: 10}, nil).
		Times(2)

	for range 3 {
		coupon, err := l.Find(context.Background(), " spring10 ")
		require.NoError(t, err)
		assert.Equal(t, 10.0, coupon.DiscountPercent)
	}

	l.Flush()
	_, err := l.Find(context.Background(), "SPRING10")
	require.NoError(t, err)
}

func TestFindRejects(t *testing.T) {
	c := cache.New(time.Minute, 0)
	defer c.Close()
	l := NewLookup(repository.NewMemoryCoupons(models.Coupon{Code: "BROKEN", DiscountPercent: 150}), c, zap.NewNop())

	tests := []struct {
		code string
		want string
	}{
		{code: "", want: "required"},
		{code: "NOPE", want: "unknown_coupon"},
		{code: "BROKEN", want: "invalid_discount"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			_, err := l.Find(context.Background(), tt.code)
			var ve *errs.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "coupon", ve.Field)
			assert.Equal(t, tt.want, ve.Code)
		})
	}
}
