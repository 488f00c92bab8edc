package orders

import (
	"slices"

	"camera-kingdom/internal/models"
)

// transitions lists every legal edge of the order lifecycle. Canceled and
// Refunded have no outgoing edge; Completed only leads to Refunded.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:    {models.StatusConfirmed, models.StatusCanceled},
	models.StatusConfirmed:  {models.StatusProcessing},
	models.StatusProcessing: {models.StatusShipped},
	models.StatusShipped:    {models.StatusCompleted},
	models.StatusCompleted:  {models.StatusRefunded},
}

// CanTransition reports whether the lifecycle has an edge from -> to.
func CanTransition(from, to models.OrderStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Next returns the statuses reachable from s in one transition.
func Next(s models.OrderStatus) []models.OrderStatus {
	return slices.Clone(transitions[s])
}

// editable lists the statuses whose details may still be corrected.
var editable = []models.OrderStatus{
	models.StatusPending,
	models.StatusConfirmed,
	models.StatusProcessing,
	models.StatusShipped,
	models.StatusCompleted,
}

// Editable reports whether an order's details may still be corrected.
func Editable(s models.OrderStatus) bool {
	return slices.Contains(editable, s)
}
