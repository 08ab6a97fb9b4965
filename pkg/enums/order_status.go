package enums

import "fmt"

// OrderStatus tracks the lifecycle of a laundry order from card setup to
// completion. The canceled escape valve is reachable from any non-terminal
// status.
type OrderStatus string

const (
	OrderStatusPendingSetup    OrderStatus = "pending_setup"
	OrderStatusCardSaved       OrderStatus = "card_saved"
	OrderStatusProcessing      OrderStatus = "processing"
	OrderStatusPickedUp        OrderStatus = "picked_up"
	OrderStatusWeighed         OrderStatus = "weighed"
	OrderStatusCharged         OrderStatus = "charged"
	OrderStatusReturnScheduled OrderStatus = "return_scheduled"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCanceled        OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingSetup,
	OrderStatusCardSaved,
	OrderStatusProcessing,
	OrderStatusPickedUp,
	OrderStatusWeighed,
	OrderStatusCharged,
	OrderStatusReturnScheduled,
	OrderStatusCompleted,
	OrderStatusCanceled,
}

// orderStatusRank orders the forward chain; canceled and completed sit at the
// top so reordered webhooks can never demote a terminal order.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPendingSetup:    0,
	OrderStatusCardSaved:       1,
	OrderStatusProcessing:      2,
	OrderStatusPickedUp:        3,
	OrderStatusWeighed:         4,
	OrderStatusCharged:         5,
	OrderStatusReturnScheduled: 6,
	OrderStatusCompleted:       7,
	OrderStatusCanceled:        7,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed out of the status.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusCompleted || o == OrderStatusCanceled
}

// Rank returns the position of the status on the forward chain.
func (o OrderStatus) Rank() int {
	return orderStatusRank[o]
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
