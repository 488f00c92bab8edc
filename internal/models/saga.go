package models

import (
	"slices"
	"time"
)

// SagaKind names the multi-step workflow that last touched an order.
type SagaKind string

const (
	SagaCheckout SagaKind = "checkout"
	SagaRefund   SagaKind = "refund"
	SagaCancel   SagaKind = "cancel"
)

// SagaState is the persisted step cursor of a saga. Consumed and Restored list
// the product ids whose stock mutation already happened, so a replay never
// applies the same mutation twice.
type SagaState struct {
	Kind        SagaKind  `json:"kind" bson:"kind"`
	Completed   []string  `json:"completed" bson:"completed"`
	Consumed    []string  `json:"consumed,omitempty" bson:"consumed,omitempty"`
	Restored    []string  `json:"restored,omitempty" bson:"restored,omitempty"`
	FailedStep  string    `json:"failedStep,omitempty" bson:"failedStep,omitempty"`
	LastError   string    `json:"lastError,omitempty" bson:"lastError,omitempty"`
	Compensated bool      `json:"compensated,omitempty" bson:"compensated,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Field is the order document field the state is stored under. The checkout
// cursor and the refund or cancel cursor are kept apart so that a compensated
// reversal never loses what checkout consumed.
func (k SagaKind) Field() string {
	if k == SagaCheckout {
		return "saga"
	}
	return "reversal"
}

// Done reports whether step already completed.
func (s *SagaState) Done(step string) bool {
	return s != nil && slices.Contains(s.Completed, step)
}

// Clone returns a deep copy of the state.
func (s SagaState) Clone() SagaState {
	out := s
	out.Completed = slices.Clone(s.Completed)
	out.Consumed = slices.Clone(s.Consumed)
	out.Restored = slices.Clone(s.Restored)
	return out
}
