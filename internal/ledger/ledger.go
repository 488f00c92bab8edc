// Package ledger is the stock ledger: the only code that mutates a product's
// stock counter.
//
// Each per-product update is a single-document atomic operation against the
// stored value. A call over several line items is not atomic as a whole; the
// Result says exactly which items took effect so the caller can compensate.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

// Direction of a stock mutation.
type Direction string

const (
	Consume Direction = "consume"
	Restore Direction = "restore"
)

// ItemFailure pairs a line item with the error that stopped it.
type ItemFailure struct {
	Item models.LineItem
	Err  error
}

// Result is the per-item outcome of an Apply call.
type Result struct {
	Direction    Direction
	Applied      []models.LineItem
	Skipped      []models.LineItem
	Failed       []ItemFailure
	NotAttempted []models.LineItem
}

// AppliedIDs returns the product ids whose stock was changed.
func (r Result) AppliedIDs() []string {
	ids := make([]string, 0, len(r.Applied))
	for _, it := range r.Applied {
		ids = append(ids, it.ProductID)
	}
	return ids
}

// Partial reports whether some but not all items took effect.
func (r Result) Partial() bool {
	return len(r.Applied) > 0 && (len(r.Failed) > 0 || len(r.NotAttempted) > 0)
}

type Ledger struct {
	products repository.ProductRepository
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

func New(products repository.ProductRepository, logger *zap.Logger, m *metrics.Metrics) *Ledger {
	return &Ledger{
		products: products,
		logger:   logger,
		tracer:   otel.Tracer("camera-kingdom/ledger"),
		metrics:  m,
	}
}

// Consume is Apply(ctx, items, Consume).
func (l *Ledger) Consume(ctx context.Context, items []models.LineItem) (Result, error) {
	return l.Apply(ctx, items, Consume)
}

// Restore is Apply(ctx, items, Restore).
func (l *Ledger) Restore(ctx context.Context, items []models.LineItem) (Result, error) {
	return l.Apply(ctx, items, Restore)
}

// Apply mutates stock for every item in order.
//
// Consume stops at the first item that cannot be decremented; the remaining
// items are reported as NotAttempted. Restore never fails for a deleted
// product (the item is Skipped with a warning) and keeps going past store
// errors so as much stock as possible is returned.
func (l *Ledger) Apply(ctx context.Context, items []models.LineItem, dir Direction) (Result, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.apply")
	defer span.End()
	span.SetAttributes(
		attribute.String("ledger.direction", string(dir)),
		attribute.Int("ledger.items", len(items)),
	)

	res := Result{Direction: dir}

	for _, it := range items {
		if it.Quantity < 1 {
			err := errs.Invalid("quantity", "below_minimum",
				fmt.Sprintf("line item %s has quantity %d", it.ProductID, it.Quantity))
			res.NotAttempted = items
			l.finish(span, res, err)
			return res, err
		}
	}

	var err error
	switch dir {
	case Consume:
		err = l.consume(ctx, items, &res)
	case Restore:
		err = l.restore(ctx, items, &res)
	default:
		err = fmt.Errorf("unknown ledger direction %q", dir)
		res.NotAttempted = items
	}

	l.finish(span, res, err)
	return res, err
}

func (l *Ledger) consume(ctx context.Context, items []models.LineItem, res *Result) error {
	for i, it := range items {
		err := l.products.ConsumeStock(ctx, it.ProductID, it.Quantity)
		if err == nil {
			res.Applied = append(res.Applied, it)
			continue
		}

		cause := l.consumeError(ctx, it, err)
		res.Failed = append(res.Failed, ItemFailure{Item: it, Err: cause})
		res.NotAttempted = append(res.NotAttempted, items[i+1:]...)

		l.logger.Warn("stock consume stopped",
			zap.String("product_id", it.ProductID),
			zap.Int("quantity", it.Quantity),
			zap.Int("applied", len(res.Applied)),
			zap.Error(cause),
		)
		return cause
	}
	return nil
}

// consumeError turns a store error into the taxonomy error for one item.
func (l *Ledger) consumeError(ctx context.Context, it models.LineItem, err error) error {
	switch {
	case errors.Is(err, repository.ErrInsufficientStock):
		available := 0
		if p, ferr := l.products.FindByID(ctx, it.ProductID); ferr == nil {
			available = p.Stock
		}
		return &errs.InsufficientStockError{
			ProductID: it.ProductID,
			Requested: it.Quantity,
			Available: available,
		}
	case errors.Is(err, repository.ErrNotFound):
		return errs.NotFound("product", it.ProductID)
	default:
		return fmt.Errorf("consume stock of %s: %w", it.ProductID, err)
	}
}

func (l *Ledger) restore(ctx context.Context, items []models.LineItem, res *Result) error {
	var failures []error

	for _, it := range items {
		err := l.products.RestoreStock(ctx, it.ProductID, it.Quantity)
		switch {
		case err == nil:
			res.Applied = append(res.Applied, it)
		case errors.Is(err, repository.ErrNotFound):
			res.Skipped = append(res.Skipped, it)
			l.logger.Warn("restore skipped, product no longer in catalog",
				zap.String("product_id", it.ProductID),
				zap.Int("quantity", it.Quantity),
			)
		default:
			err = fmt.Errorf("restore stock of %s: %w", it.ProductID, err)
			res.Failed = append(res.Failed, ItemFailure{Item: it, Err: err})
			failures = append(failures, err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("restore failed for %d of %d items: %w", len(failures), len(items), errors.Join(failures...))
	}
	return nil
}

func (l *Ledger) finish(span trace.Span, res Result, err error) {
	span.SetAttributes(
		attribute.Int("ledger.applied", len(res.Applied)),
		attribute.Int("ledger.skipped", len(res.Skipped)),
		attribute.Int("ledger.failed", len(res.Failed)),
	)

	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case res.Partial():
		outcome = metrics.OutcomePartial
		span.RecordError(err)
		span.SetStatus(codes.Error, "partially applied")
	default:
		outcome = metrics.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	l.metrics.LedgerOp(string(l.directionLabel(res.Direction)), outcome)
}

func (l *Ledger) directionLabel(d Direction) Direction {
	if d == Consume || d == Restore {
		return d
	}
	return "unknown"
}
