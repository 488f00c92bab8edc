// Package errs defines the error taxonomy shared by the cart, the stock
// ledger, checkout and the order lifecycle manager.
//
// Every concrete error matches exactly one category sentinel through
// errors.Is, so callers can branch on the category without knowing the type:
//
//	if errors.Is(err, errs.ErrStockConflict) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Category sentinels.
var (
	ErrValidation         = errors.New("validation failed")
	ErrStockConflict      = errors.New("stock conflict")
	ErrNotFound           = errors.New("not found")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrPartialFailure     = errors.New("partial failure")
	ErrCompensationFailed = errors.New("compensation failed")
	ErrForbidden          = errors.New("forbidden")
)

// ErrOrderCreatedButStockConsumeFailed marks a checkout whose order document
// exists but whose stock was not (fully) consumed.
var ErrOrderCreatedButStockConsumeFailed = errors.New("order created but stock consume failed")

// ValidationError is a field-scoped input error reported before any write.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Code)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, code, message string) *ValidationError {
	return &ValidationError{Field: field, Code: code, Message: message}
}

// InsufficientStockError is returned by the ledger when the stored stock of a
// product is lower than the requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrStockConflict }

// StockConflict describes one cart line that no longer fits the live stock.
type StockConflict struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// StockConflictError lists every cart line that changed between the cart
// snapshot and the live catalog. The cart should be refreshed and re-offered.
type StockConflictError struct {
	Conflicts []StockConflict
}

func (e *StockConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, fmt.Sprintf("%s (requested %d, available %d)", c.ProductID, c.Requested, c.Available))
	}
	return "stock changed for: " + strings.Join(parts, ", ")
}

func (e *StockConflictError) Is(target error) bool { return target == ErrStockConflict }

// NotFoundError reports a missing order, product or user.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(kind, id string) *NotFoundError { return &NotFoundError{Kind: kind, ID: id} }

// IllegalTransitionError reports a status guard violation.
type IllegalTransitionError struct {
	OrderID string
	From    string
	To      string
	Reason  string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("order %s: cannot move from %s to %s", e.OrderID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// PartialFailureError reports a saga that stopped partway. Completed lists the
// steps that took effect; Compensated is set when those effects were undone.
type PartialFailureError struct {
	Op          string
	OrderID     string
	Completed   []string
	Failed      string
	Compensated bool
	Err         error
}

func (e *PartialFailureError) Error() string {
	state := "not compensated"
	if e.Compensated {
		state = "compensated"
	}
	return fmt.Sprintf("%s order %s failed at step %q after [%s] (%s): %v",
		e.Op, e.OrderID, e.Failed, strings.Join(e.Completed, ", "), state, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

func (e *PartialFailureError) Is(target error) bool { return target == ErrPartialFailure }

// CompensationFailedError is fatal: a rollback itself failed and the state of
// the affected records can no longer be determined automatically.
type CompensationFailedError struct {
	Op        string
	OrderID   string
	Cause     error
	Rollback  error
	Completed []string
}

func (e *CompensationFailedError) Error() string {
	return fmt.Sprintf("%s order %s: compensation failed, manual intervention required (cause: %v; rollback: %v)",
		e.Op, e.OrderID, e.Cause, e.Rollback)
}

func (e *CompensationFailedError) Unwrap() []error { return []error{e.Cause, e.Rollback} }

func (e *CompensationFailedError) Is(target error) bool { return target == ErrCompensationFailed }

// UserMessage maps an error to the message shown to customers and admins.
// Internal details of partial failures are never exposed.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCompensationFailed), errors.Is(err, ErrPartialFailure):
		return "failed to complete the operation, please contact support"
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrStockConflict):
		return "some items in your cart are no longer available in the requested quantity"
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrForbidden):
		return err.Error()
	default:
		return "internal error"
	}
}
