package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusPending, false},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusPending, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusShipped, StatusShipped, true},
		{StatusDelivered, StatusDelivered, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_Transition(t *testing.T) {
	assert.NoError(t, StatusPending.Transition(StatusProcessing))

	err := StatusDelivered.Transition(StatusPending)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Contains(t, err.Error(), "DELIVERED -> PENDING")

	err = StatusPending.Transition(Status("LOST"))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusDelivered.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusShipped.IsTerminal())
}

func TestPaymentStatus_Transition(t *testing.T) {
	assert.NoError(t, PaymentPending.Transition(PaymentCompleted))
	assert.NoError(t, PaymentPending.Transition(PaymentFailed))
	assert.NoError(t, PaymentCompleted.Transition(PaymentRefunded))
	assert.NoError(t, PaymentFailed.Transition(PaymentPending))
	assert.NoError(t, PaymentCompleted.Transition(PaymentCompleted))

	assert.ErrorIs(t, PaymentRefunded.Transition(PaymentCompleted), ErrInvalidTransition)
	assert.ErrorIs(t, PaymentCompleted.Transition(PaymentPending), ErrInvalidTransition)
	assert.ErrorIs(t, PaymentPending.Transition(PaymentStatus("VOID")), ErrInvalidTransition)
}

func TestPaymentMethod_InitialStatus(t *testing.T) {
	assert.Equal(t, PaymentCompleted, MethodCard.InitialStatus())
	assert.Equal(t, PaymentCompleted, MethodOnline.InitialStatus())
	assert.Equal(t, PaymentPending, MethodCash.InitialStatus())
	assert.False(t, PaymentMethod("crypto").IsValid())
}
