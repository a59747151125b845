package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusProcessing},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusRefunded},
		{StatusProcessing, StatusShipped},
		{StatusProcessing, StatusCancelled},
		{StatusProcessing, StatusRefunded},
		{StatusShipped, StatusDelivered},
		{StatusShipped, StatusRefunded},
		{StatusDelivered, StatusRefunded},
	}
	for _, c := range allowed {
		assert.True(t, CanTransition(c.from, c.to), "%s -> %s should be allowed", c.from, c.to)
	}

	denied := []struct{ from, to Status }{
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusPending, StatusRefunded},
		{StatusConfirmed, StatusDelivered},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusCancelled},
		{StatusCancelled, StatusConfirmed},
		{StatusCancelled, StatusRefunded},
		{StatusRefunded, StatusPending},
	}
	for _, c := range denied {
		assert.False(t, CanTransition(c.from, c.to), "%s -> %s should be denied", c.from, c.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	all := []Status{
		StatusPending, StatusConfirmed, StatusProcessing,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded,
	}
	for _, to := range all {
		assert.False(t, CanTransition(StatusCancelled, to))
		assert.False(t, CanTransition(StatusRefunded, to))
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("teleported").Valid())
	assert.False(t, Status("").Valid())

	assert.True(t, PaymentPaid.Valid())
	assert.False(t, PaymentStatus("iou").Valid())
}
