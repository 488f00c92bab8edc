// Package cart keeps each user's pending line items.
//
// A cart lives in two places: an in-memory mirror used for every read, and
// the cart field of the user record. Every mutation writes both in one step
// and rolls the mirror back when the persisted write fails.
//
// Quantities accepted here are tentative. They are checked against the live
// catalog only by Check, which checkout calls before committing, and finally
// by the stock ledger.
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

// MaxQuantity is the largest quantity one cart line may hold.
const MaxQuantity = 100

// Error codes carried by the cart's validation errors.
const (
	CodeOutOfStock           = "out_of_stock"
	CodeQuantityExceedsStock = "quantity_exceeds_stock"
	CodeBelowMinimum         = "below_minimum"
	CodeAboveMaximum         = "above_maximum"
	CodeNotInCart            = "not_in_cart"
)

type userCart struct {
	mu     sync.Mutex
	loaded bool
	lines  []models.CartLine
}

type Service struct {
	products repository.ProductRepository
	users    repository.UserRepository
	logger   *zap.Logger

	mu    sync.Mutex
	carts map[string]*userCart
}

func NewService(products repository.ProductRepository, users repository.UserRepository, logger *zap.Logger) *Service {
	return &Service{
		products: products,
		users:    users,
		logger:   logger,
		carts:    make(map[string]*userCart),
	}
}

// Get returns the user's cart, loading it from the user record on first use.
func (s *Service) Get(ctx context.Context, userID string) ([]models.CartLine, error) {
	uc := s.cart(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := s.load(ctx, userID, uc); err != nil {
		return nil, err
	}
	return cloneOrEmpty(uc.lines), nil
}

// Add puts one unit of the product in the cart, or one more unit when the
// product is already there.
func (s *Service) Add(ctx context.Context, userID, productID string) ([]models.CartLine, error) {
	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errs.NotFound("product", productID)
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", productID, err)
	}

	return s.mutate(ctx, userID, func(lines []models.CartLine) ([]models.CartLine, error) {
		if product.Stock == 0 {
			return nil, errs.Invalid("quantity", CodeOutOfStock,
				fmt.Sprintf("%s %s is out of stock", product.Brand, product.Model))
		}

		i := indexOf(lines, productID)
		if i < 0 {
			return append(lines, models.CartLine{Product: product.Snapshot(), Quantity: 1}), nil
		}

		next := lines[i].Quantity + 1
		if next > product.Stock {
			return nil, errs.Invalid("quantity", CodeQuantityExceedsStock,
				fmt.Sprintf("only %d units of %s %s are available", product.Stock, product.Brand, product.Model))
		}
		if next > MaxQuantity {
			return nil, errs.Invalid("quantity", CodeAboveMaximum,
				fmt.Sprintf("quantity cannot exceed %d", MaxQuantity))
		}
		lines[i].Quantity = next
		lines[i].Product = product.Snapshot()
		return lines, nil
	})
}

// Remove drops the product's line.
func (s *Service) Remove(ctx context.Context, userID, productID string) ([]models.CartLine, error) {
	return s.mutate(ctx, userID, func(lines []models.CartLine) ([]models.CartLine, error) {
		i := indexOf(lines, productID)
		if i < 0 {
			return nil, errs.Invalid("productId", CodeNotInCart, fmt.Sprintf("product %s is not in the cart", productID))
		}
		return slices.Delete(lines, i, i+1), nil
	})
}

// SetQuantity replaces the quantity of a line. Live stock is not consulted.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, qty int) ([]models.CartLine, error) {
	if qty < 1 {
		return nil, errs.Invalid("quantity", CodeBelowMinimum, "quantity must be at least 1")
	}
	if qty > MaxQuantity {
		return nil, errs.Invalid("quantity", CodeAboveMaximum, fmt.Sprintf("quantity cannot exceed %d", MaxQuantity))
	}

	return s.mutate(ctx, userID, func(lines []models.CartLine) ([]models.CartLine, error) {
		i := indexOf(lines, productID)
		if i < 0 {
			return nil, errs.Invalid("productId", CodeNotInCart, fmt.Sprintf("product %s is not in the cart", productID))
		}
		lines[i].Quantity = qty
		return lines, nil
	})
}

// PruneUnavailable removes every line whose product is gone, out of stock, or
// short of the line's quantity, and returns the removed lines. Lines that stay
// get a fresh product snapshot. Nothing is written when nothing changed.
func (s *Service) PruneUnavailable(ctx context.Context, userID string) ([]models.CartLine, error) {
	uc := s.cart(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := s.load(ctx, userID, uc); err != nil {
		return nil, err
	}

	var kept, removed []models.CartLine
	changed := false
	for _, line := range uc.lines {
		product, err := s.products.FindByID(ctx, line.Product.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			removed = append(removed, line)
			continue
		case err != nil:
			return nil, fmt.Errorf("load product %s: %w", line.Product.ID, err)
		}

		if product.Stock == 0 || line.Quantity > product.Stock {
			removed = append(removed, line)
			continue
		}
		if snap := product.Snapshot(); snap != line.Product {
			line.Product = snap
			changed = true
		}
		kept = append(kept, line)
	}

	if len(removed) == 0 && !changed {
		return nil, nil
	}
	if err := s.write(ctx, userID, uc, kept); err != nil {
		return nil, err
	}

	if len(removed) > 0 {
		s.logger.Info("unavailable cart lines removed",
			zap.String("user_id", userID),
			zap.Int("removed", len(removed)),
		)
	}
	return removed, nil
}

// Clear empties the cart. Checkout calls it once the order is placed.
func (s *Service) Clear(ctx context.Context, userID string) error {
	_, err := s.mutate(ctx, userID, func([]models.CartLine) ([]models.CartLine, error) {
		return nil, nil
	})
	return err
}

// Logout drops the in-memory mirror of the user's cart. The persisted cart is
// kept and reloaded on the next session. The entry itself stays in place so
// a mutation still running for the old session finishes before the mirror is
// marked unloaded.
func (s *Service) Logout(userID string) {
	s.mu.Lock()
	uc, ok := s.carts[userID]
	s.mu.Unlock()
	if !ok {
		return
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.loaded = false
	uc.lines = nil
}

// Check compares tentative lines against the live catalog without writing
// anything. It returns a *errs.StockConflictError listing every line that
// cannot be fulfilled.
func (s *Service) Check(ctx context.Context, lines []models.CartLine) error {
	var conflicts []errs.StockConflict
	for _, line := range lines {
		available := 0
		product, err := s.products.FindByID(ctx, line.Product.ID)
		switch {
		case err == nil:
			available = product.Stock
		case !errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("load product %s: %w", line.Product.ID, err)
		}

		if line.Quantity > available {
			conflicts = append(conflicts, errs.StockConflict{
				ProductID: line.Product.ID,
				Requested: line.Quantity,
				Available: available,
			})
		}
	}

	if len(conflicts) > 0 {
		return &errs.StockConflictError{Conflicts: conflicts}
	}
	return nil
}

func (s *Service) cart(userID string) *userCart {
	s.mu.Lock()
	defer s.mu.Unlock()

	uc, ok := s.carts[userID]
	if !ok {
		uc = &userCart{}
		s.carts[userID] = uc
	}
	return uc
}

// load must be called with uc.mu held.
func (s *Service) load(ctx context.Context, userID string, uc *userCart) error {
	if uc.loaded {
		return nil
	}
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		uc.lines = nil
	case err != nil:
		return fmt.Errorf("load cart of user %s: %w", userID, err)
	default:
		uc.lines = models.CloneLines(user.Cart)
	}
	uc.loaded = true
	return nil
}

func (s *Service) mutate(ctx context.Context, userID string, fn func([]models.CartLine) ([]models.CartLine, error)) ([]models.CartLine, error) {
	uc := s.cart(userID)
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if err := s.load(ctx, userID, uc); err != nil {
		return nil, err
	}

	next, err := fn(models.CloneLines(uc.lines))
	if err != nil {
		return nil, err
	}
	if err := s.write(ctx, userID, uc, next); err != nil {
		return nil, err
	}
	return cloneOrEmpty(next), nil
}

// write swaps the mirror to next and persists it, restoring the previous
// mirror when the store rejects the write. Must be called with uc.mu held.
func (s *Service) write(ctx context.Context, userID string, uc *userCart, next []models.CartLine) error {
	prev := uc.lines
	uc.lines = next
	if err := s.users.SetCart(ctx, userID, next); err != nil {
		uc.lines = prev
		s.logger.Warn("cart write failed, mirror rolled back",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return fmt.Errorf("persist cart of user %s: %w", userID, err)
	}
	return nil
}

func indexOf(lines []models.CartLine, productID string) int {
	return slices.IndexFunc(lines, func(l models.CartLine) bool { return l.Product.ID == productID })
}

func cloneOrEmpty(lines []models.CartLine) []models.CartLine {
	if len(lines) == 0 {
		return []models.CartLine{}
	}
	return models.CloneLines(lines)
}
