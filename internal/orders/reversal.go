package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/events"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/saga"
)

// Reversal saga steps.
const (
	StepStatusSet     = "status_set"
	StepStockRestored = "stock_restored"
	StepHistorySynced = "history_synced"
)

// reversal describes a transition that hands stock back: refund and cancel.
type reversal struct {
	op   string
	kind models.SagaKind
	from models.OrderStatus
	to   models.OrderStatus
}

var (
	refundReversal = reversal{op: "refund", kind: models.SagaRefund, from: models.StatusCompleted, to: models.StatusRefunded}
	cancelReversal = reversal{op: "cancel", kind: models.SagaCancel, from: models.StatusPending, to: models.StatusCanceled}
)

func reversalFor(kind models.SagaKind) (reversal, bool) {
	switch kind {
	case models.SagaRefund:
		return refundReversal, true
	case models.SagaCancel:
		return cancelReversal, true
	}
	return reversal{}, false
}

func (m *Manager) reverse(ctx context.Context, order *models.Order, rv reversal) (*models.Order, error) {
	ctx, span := m.tracer.Start(ctx, "orders."+rv.op)
	defer span.End()
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.from", string(order.Status)))

	if err := checkEdge(order, rv.to); err != nil {
		m.metrics.Transition(string(rv.to), metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	state := &models.SagaState{Kind: rv.kind}
	return m.runReversal(ctx, span, order, rv, state)
}

// ResumeReversal replays an interrupted refund or cancel from its cursor.
// It is an operator action. A reversal that was compensated is over and is
// not resumed.
func (m *Manager) ResumeReversal(ctx context.Context, id string) (*models.Order, error) {
	ctx, span := m.tracer.Start(ctx, "orders.resume_reversal")
	defer span.End()

	order, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Reversal == nil || order.Reversal.Compensated {
		return nil, &errs.IllegalTransitionError{
			OrderID: id, From: string(order.Status), To: string(order.Status),
			Reason: "order has no interrupted refund or cancel",
		}
	}
	rv, ok := reversalFor(order.Reversal.Kind)
	if !ok || order.Status != rv.to {
		return nil, &errs.IllegalTransitionError{
			OrderID: id, From: string(order.Status), To: string(rv.to),
			Reason: "order has no interrupted refund or cancel",
		}
	}

	state := order.Reversal.Clone()
	if len(saga.Pending(&state, m.reversalSteps(order, rv))) == 0 {
		return order, nil
	}
	m.logger.Info("resuming reversal saga", zap.String("order_id", id), zap.String("op", rv.op))
	return m.runReversal(ctx, span, order, rv, &state)
}

func (m *Manager) runReversal(ctx context.Context, span trace.Span, order *models.Order, rv reversal, state *models.SagaState) (*models.Order, error) {
	err := m.runner.Run(ctx, order.ID, state, m.reversalSteps(order, rv))
	if err == nil {
		from := rv.from
		order.Status = rv.to
		m.metrics.Transition(string(rv.to), metrics.OutcomeOK)
		span.SetStatus(codes.Ok, "")
		m.logger.Info("order status changed",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.String("from", string(from)),
			zap.String("status", string(rv.to)),
			zap.Strings("restored", state.Restored),
		)
		m.publish(ctx, statusEvents[rv.to], order, map[string]any{"from": string(from), "restored": state.Restored})
		return order, nil
	}

	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) {
		stepErr = &saga.StepError{Err: err}
	}

	// The status never changed: nothing to undo.
	if stepErr.Step == StepStatusSet && !slices.Contains(stepErr.Completed, StepStatusSet) {
		m.metrics.Transition(string(rv.to), metrics.OutcomeFailed)
		span.RecordError(stepErr.Err)
		span.SetStatus(codes.Error, stepErr.Err.Error())
		return nil, stepErr.Err
	}

	return nil, m.compensate(ctx, span, order, rv, state, stepErr)
}

func (m *Manager) reversalSteps(order *models.Order, rv reversal) []saga.Step {
	items := consumedItems(order)
	return []saga.Step{
		{Name: StepStatusSet, Run: func(ctx context.Context, _ *models.SagaState) error {
			return m.setStatus(ctx, order, rv.from, rv.to)
		}},
		{Name: StepStockRestored, Run: func(ctx context.Context, state *models.SagaState) error {
			var pending []models.LineItem
			for _, it := range items {
				if !slices.Contains(state.Restored, it.ProductID) {
					pending = append(pending, it)
				}
			}
			res, err := m.stock.Restore(ctx, pending)
			state.Restored = append(state.Restored, res.AppliedIDs()...)
			return err
		}},
		{Name: StepHistorySynced, Run: func(ctx context.Context, _ *models.SagaState) error {
			return m.mirror.Sync(ctx, order.UserID)
		}},
	}
}

// compensate undoes a reversal that stopped after its status was set: the
// stock restored so far is consumed again, then the status is put back.
func (m *Manager) compensate(ctx context.Context, span trace.Span, order *models.Order, rv reversal, state *models.SagaState, stepErr *saga.StepError) error {
	cause := stepErr.Err
	log := m.logger.With(
		zap.String("op", rv.op),
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("step", stepErr.Step),
		zap.Strings("completed", stepErr.Completed),
	)
	log.Error("reversal step failed, compensating", zap.Error(cause))

	rollback := m.undoRestore(ctx, order, state)
	if rollback == nil {
		if err := m.orders.SetStatus(ctx, order.ID, rv.to, rv.from); err != nil {
			rollback = fmt.Errorf("revert status to %s: %w", rv.from, err)
		}
	}

	if rollback != nil {
		cf := &errs.CompensationFailedError{
			Op:        rv.op,
			OrderID:   order.ID,
			Cause:     cause,
			Rollback:  rollback,
			Completed: stepErr.Completed,
		}
		state.LastError = cf.Error()
		m.saveCursor(ctx, order.ID, state, log)

		log.Error("compensation failed, manual intervention required",
			zap.Strings("restored", state.Restored),
			zap.NamedError("cause", cause),
			zap.NamedError("rollback", rollback),
		)
		m.metrics.Compensation(rv.op, metrics.OutcomeFatal)
		m.metrics.Transition(string(rv.to), metrics.OutcomeFatal)
		span.RecordError(cf)
		span.SetStatus(codes.Error, "compensation failed")

		order.Status = rv.to
		m.sync(ctx, order)
		m.publish(ctx, events.OrderCompensationFailed, order, map[string]any{"op": rv.op, "step": stepErr.Step})
		return cf
	}

	state.Completed = nil
	state.Compensated = true
	m.saveCursor(ctx, order.ID, state, log)

	if err := m.mirror.Sync(ctx, order.UserID); err != nil {
		log.Warn("mirror sync after compensation failed", zap.Error(err))
	}

	log.Warn("reversal compensated", zap.String("status", string(rv.from)))
	m.metrics.Compensation(rv.op, metrics.OutcomeOK)
	m.metrics.Transition(string(rv.to), metrics.OutcomePartial)
	span.RecordError(cause)
	span.SetStatus(codes.Error, "compensated")

	m.publish(ctx, events.OrderCompensated, order, map[string]any{"op": rv.op, "step": stepErr.Step})
	return &errs.PartialFailureError{
		Op:          rv.op,
		OrderID:     order.ID,
		Completed:   stepErr.Completed,
		Failed:      stepErr.Step,
		Compensated: true,
		Err:         cause,
	}
}

// undoRestore consumes again every item the reversal restored and takes it
// off the cursor, so a later resume restores it once more.
func (m *Manager) undoRestore(ctx context.Context, order *models.Order, state *models.SagaState) error {
	var restored []models.LineItem
	for _, it := range order.Purchase.Items {
		if slices.Contains(state.Restored, it.ProductID) {
			restored = append(restored, it)
		}
	}
	if len(restored) == 0 {
		return nil
	}

	res, err := m.stock.Consume(ctx, restored)
	if len(res.Applied) > 0 {
		undone := res.AppliedIDs()
		state.Restored = slices.DeleteFunc(state.Restored, func(id string) bool { return slices.Contains(undone, id) })
		state.Completed = slices.DeleteFunc(state.Completed, func(step string) bool { return step == StepStockRestored })
	}
	if err != nil {
		return fmt.Errorf("consume restored stock again: %w", err)
	}
	return nil
}

func (m *Manager) saveCursor(ctx context.Context, orderID string, state *models.SagaState, log *zap.Logger) {
	state.UpdatedAt = time.Now().UTC()
	if err := m.orders.SetSaga(ctx, orderID, *state); err != nil {
		log.Error("persist reversal cursor", zap.Error(err))
	}
}
