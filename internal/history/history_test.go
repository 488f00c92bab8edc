package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
	"camera-kingdom/internal/repository/mocks"
)

func TestSyncRederivesMirror(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	s := NewSyncer(store.Orders, store.Users, zap.NewNop())

	for n, user := range map[int64]string{1000: "u1", 1001: "u2", 1002: "u1"} {
		_, err := store.Orders.Create(ctx, &models.Order{
			OrderNumber: n,
			UserID:      user,
			Status:      models.StatusPending,
			Saga:        &models.SagaState{Kind: models.SagaCheckout},
		})
		require.NoError(t, err)
	}

	// A stale entry that no longer exists in the orders collection.
	require.NoError(t, store.Users.SetOrders(ctx, "u1", []models.Order{{ID: "ghost", OrderNumber: 1}}))

	require.NoError(t, s.Sync(ctx, "u1"))

	mirror, err := s.Orders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mirror, 2)
	assert.Equal(t, int64(1000), mirror[0].OrderNumber)
	assert.Equal(t, int64(1002), mirror[1].OrderNumber)
	assert.Nil(t, mirror[0].Saga, "saga cursors stay on the authoritative document")
}

func TestSyncWithoutUserIsNoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSyncer(mocks.NewMockOrderRepository(ctrl), mocks.NewMockUserRepository(ctrl), zap.NewNop())
	assert.NoError(t, s.Sync(context.Background(), ""))
}

func TestSyncPropagatesStoreErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	orders := mocks.NewMockOrderRepository(ctrl)
	users := mocks.NewMockUserRepository(ctrl)
	s := NewSyncer(orders, users, zap.NewNop())
	boom := errors.New("users collection unavailable")

	orders.EXPECT().FindByUser(gomock.Any(), "u1").Return([]models.Order{{ID: "o1"}}, nil)
	users.EXPECT().SetOrders(gomock.Any(), "u1", gomock.Len(1)).Return(boom)

	assert.ErrorIs(t, s.Sync(context.Background(), "u1"), boom)
}

func TestOrdersOfUnknownUser(t *testing.T) {
	store := repository.NewMemoryStore()
	s := NewSyncer(store.Orders, store.Users, zap.NewNop())

	_, err := s.Orders(context.Background(), "nobody")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}
