package orders

import "github.com/laundrylink/laundrylink-backend/pkg/enums"

// courierStatusToOrder maps a courier delivery status onto the order chain.
// Unknown courier statuses map to nothing and are ignored by the caller.
var courierStatusToOrder = map[enums.DeliveryStatus]enums.OrderStatus{
	enums.DeliveryStatusPending:        enums.OrderStatusProcessing,
	enums.DeliveryStatusPickup:         enums.OrderStatusProcessing,
	enums.DeliveryStatusPickupComplete: enums.OrderStatusPickedUp,
	enums.DeliveryStatusDropoff:        enums.OrderStatusPickedUp,
	enums.DeliveryStatusDelivered:      enums.OrderStatusCompleted,
	enums.DeliveryStatusCanceled:       enums.OrderStatusCanceled,
	enums.DeliveryStatusReturned:       enums.OrderStatusReturnScheduled,
}

// orderStatusForCourier resolves the order status a courier update implies.
// The second return is false when the courier status carries no order
// transition.
func orderStatusForCourier(status enums.DeliveryStatus) (enums.OrderStatus, bool) {
	mapped, ok := courierStatusToOrder[status]
	return mapped, ok
}

// shouldAdvanceOrder enforces forward-only transitions: a courier update may
// never move an order backwards on the chain, and terminal states never
// change.
func shouldAdvanceOrder(current, next enums.OrderStatus) bool {
	if current.IsTerminal() {
		return false
	}
	return next.Rank() > current.Rank()
}
