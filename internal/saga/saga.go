// Package saga runs multi-step workflows across independent documents with a
// step cursor persisted on the order, so a workflow that stopped halfway can
// be replayed from the last completed step.
package saga

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"camera-kingdom/internal/models"
)

// Step is one unit of a saga. Run may record progress on the state (for
// example the product ids already consumed); the runner persists it together
// with the completion mark.
type Step struct {
	Name string
	Run  func(ctx context.Context, state *models.SagaState) error
}

// Store persists the cursor of one order.
type Store interface {
	SetSaga(ctx context.Context, orderID string, state models.SagaState) error
}

// StepError reports the step a saga stopped at.
type StepError struct {
	Step      string
	Completed []string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga step %q failed after [%s]: %v", e.Step, strings.Join(e.Completed, ", "), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type Runner struct {
	store  Store
	logger *zap.Logger
}

func NewRunner(store Store, logger *zap.Logger) *Runner {
	return &Runner{store: store, logger: logger}
}

// Run executes steps in order and skips the ones the state already lists as
// completed. The cursor is written after every step. On failure the failed
// step and its error are written too and a *StepError is returned; no earlier
// step is undone here, compensation is the caller's decision.
func (r *Runner) Run(ctx context.Context, orderID string, state *models.SagaState, steps []Step) error {
	for _, step := range steps {
		if state.Done(step.Name) {
			continue
		}

		log := r.logger.With(
			zap.String("order_id", orderID),
			zap.String("saga", string(state.Kind)),
			zap.String("step", step.Name),
		)

		if err := step.Run(ctx, state); err != nil {
			state.FailedStep = step.Name
			state.LastError = err.Error()
			r.persist(ctx, orderID, state, log)
			return &StepError{Step: step.Name, Completed: slices.Clone(state.Completed), Err: err}
		}

		state.Completed = append(state.Completed, step.Name)
		state.FailedStep = ""
		state.LastError = ""
		if err := r.persist(ctx, orderID, state, log); err != nil {
			// The step took effect but the cursor does not show it. Stop so
			// the next step is not run on top of an unrecorded one.
			return &StepError{
				Step:      step.Name,
				Completed: slices.Clone(state.Completed),
				Err:       fmt.Errorf("persist saga cursor: %w", err),
			}
		}
		log.Debug("saga step completed")
	}
	return nil
}

// Pending returns the names of steps not yet completed.
func Pending(state *models.SagaState, steps []Step) []string {
	var out []string
	for _, s := range steps {
		if !state.Done(s.Name) {
			out = append(out, s.Name)
		}
	}
	return out
}

func (r *Runner) persist(ctx context.Context, orderID string, state *models.SagaState, log *zap.Logger) error {
	state.UpdatedAt = time.Now().UTC()
	if err := r.store.SetSaga(ctx, orderID, *state); err != nil {
		log.Error("persist saga cursor", zap.Error(err))
		return err
	}
	return nil
}
