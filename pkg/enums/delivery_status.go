package enums

import "fmt"

// DeliveryStatus mirrors the courier network's delivery lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusPending        DeliveryStatus = "pending"
	DeliveryStatusPickup         DeliveryStatus = "pickup"
	DeliveryStatusPickupComplete DeliveryStatus = "pickup_complete"
	DeliveryStatusDropoff        DeliveryStatus = "dropoff"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusCanceled       DeliveryStatus = "canceled"
	DeliveryStatusReturned       DeliveryStatus = "returned"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusPickup,
	DeliveryStatusPickupComplete,
	DeliveryStatusDropoff,
	DeliveryStatusDelivered,
	DeliveryStatusCanceled,
	DeliveryStatusReturned,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the courier considers the leg finished.
func (d DeliveryStatus) IsTerminal() bool {
	return d == DeliveryStatusDelivered || d == DeliveryStatusCanceled || d == DeliveryStatusReturned
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}
