package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"camera-kingdom/internal/models"
)

func TestCanTransition(t *testing.T) {
	all := []models.OrderStatus{
		models.StatusPending, models.StatusConfirmed, models.StatusProcessing, models.StatusShipped,
		models.StatusCompleted, models.StatusCanceled, models.StatusRefunded,
	}
	legal := map[[2]models.OrderStatus]bool{
		{models.StatusPending, models.StatusConfirmed}:    true,
		{models.StatusPending, models.StatusCanceled}:     true,
		{models.StatusConfirmed, models.StatusProcessing}: true,
		{models.StatusProcessing, models.StatusShipped}:   true,
		{models.StatusShipped, models.StatusCompleted}:    true,
		{models.StatusCompleted, models.StatusRefunded}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, legal[[2]models.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}

	assert.Empty(t, Next(models.StatusCanceled))
	assert.Empty(t, Next(models.StatusRefunded))
	assert.Equal(t, []models.OrderStatus{models.StatusRefunded}, Next(models.StatusCompleted))
	assert.True(t, Editable(models.StatusCompleted))
	assert.False(t, Editable(models.StatusRefunded))
}
