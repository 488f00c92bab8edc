// Package history keeps the order-history mirror on the user record in step
// with the orders collection.
package history

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

type Syncer struct {
	orders repository.OrderRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func NewSyncer(orders repository.OrderRepository, users repository.UserRepository, logger *zap.Logger) *Syncer {
	return &Syncer{orders: orders, users: users, logger: logger}
}

// Sync rebuilds the user's mirror from every order the user owns. The mirror
// is never patched in place, so a missed update heals on the next sync.
func (s *Syncer) Sync(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	orders, err := s.orders.FindByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load orders of user %s: %w", userID, err)
	}
	for i := range orders {
		orders[i].Saga = nil
		orders[i].Reversal = nil
	}

	if err := s.users.SetOrders(ctx, userID, orders); err != nil {
		return fmt.Errorf("write order mirror of user %s: %w", userID, err)
	}

	s.logger.Debug("order mirror synced", zap.String("user_id", userID), zap.Int("orders", len(orders)))
	return nil
}

// Orders returns the mirrored order list for profile display.
func (s *Syncer) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errs.NotFound("user", userID)
	}
	if err != nil {
		return nil, err
	}
	if user.Orders == nil {
		return []models.Order{}, nil
	}
	return user.Orders, nil
}
