package kitchen

import (
	"errors"
	"fmt"

	"github.com/donana/kitchen-api/internal/enum"
)

// OrderStatus is the lifecycle state of an order. SCHEDULED is the only
// non-terminal state.
type OrderStatus string

const (
	Scheduled OrderStatus = enum.OrderStatusScheduled
	Delivered OrderStatus = enum.OrderStatusDelivered
	Cancelled OrderStatus = enum.OrderStatusCancelled
)

// Action is a requested status change.
type Action int

const (
	Deliver Action = iota
	Cancel
)

func (a Action) String() string {
	switch a {
	case Deliver:
		return "deliver"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Outcome tells the caller what to do with a requested transition.
type Outcome int

const (
	// Apply means the transition is legal and its side effects must run.
	Apply Outcome = iota
	// NoOp means the order is already in the target state.
	NoOp
)

var (
	ErrCancelledNotDeliverable = errors.New("cancelled order cannot be delivered")
	ErrDeliveredNotCancellable = errors.New("delivered order cannot be cancelled")
	ErrUnknownStatus           = errors.New("unknown order status")
)

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case Scheduled, Delivered, Cancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s OrderStatus) Terminal() bool {
	switch s {
	case Delivered, Cancelled:
		return true
	case Scheduled:
		return false
	}
	return false
}

// Transition resolves action against the current status and returns the
// resulting status. A terminal order asked to move into the state it is
// already in is a NoOp; moving between the two terminal states is an error.
func Transition(current OrderStatus, action Action) (OrderStatus, Outcome, error) {
	switch current {
	case Scheduled:
		switch action {
		case Deliver:
			return Delivered, Apply, nil
		case Cancel:
			return Cancelled, Apply, nil
		}
	case Delivered:
		switch action {
		case Deliver:
			return Delivered, NoOp, nil
		case Cancel:
			return current, NoOp, ErrDeliveredNotCancellable
		}
	case Cancelled:
		switch action {
		case Deliver:
			return current, NoOp, ErrCancelledNotDeliverable
		case Cancel:
			return Cancelled, NoOp, nil
		}
	default:
		return current, NoOp, fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}
	return current, NoOp, fmt.Errorf("unsupported action %s", action)
}
