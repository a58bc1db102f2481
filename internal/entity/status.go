package domain

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
)

var ErrInvalidTransition = errors.New("invalid status transition")

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo allows the forward lifecycle plus cancellation from any
// non-terminal state. A same-state move is always allowed.
func (s Status) CanTransitionTo(to Status) bool {
	if s == to {
		return s.IsValid()
	}
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusShipped || to == StatusCancelled
	case StatusShipped:
		return to == StatusDelivered || to == StatusCancelled
	default:
		return false
	}
}

// Transition validates s -> to and returns ErrInvalidTransition wrapped with
// both ends when not allowed.
func (s Status) Transition(to Status) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !s.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, to)
	}
	return nil
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	default:
		return false
	}
}

func (s PaymentStatus) CanTransitionTo(to PaymentStatus) bool {
	if s == to {
		return s.IsValid()
	}
	switch s {
	case PaymentPending:
		return to == PaymentCompleted || to == PaymentFailed
	case PaymentCompleted:
		return to == PaymentRefunded
	case PaymentFailed:
		return to == PaymentPending
	default:
		return false
	}
}

func (s PaymentStatus) Transition(to PaymentStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, to)
	}
	if !s.CanTransitionTo(to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidTransition, s, to)
	}
	return nil
}
