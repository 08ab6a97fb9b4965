package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateQuote    OutboxAggregateType = "delivery_quote"
	AggregateOrder    OutboxAggregateType = "order"
	AggregateDelivery OutboxAggregateType = "delivery"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQuote,
	AggregateOrder,
	AggregateDelivery,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventQuoteRequested      OutboxEventType = "quote_requested"
	EventQuoteReadyForReview OutboxEventType = "quote_ready_for_review"
	EventQuoteRejected       OutboxEventType = "quote_rejected"
	EventQuoteExpired        OutboxEventType = "quote_expired"
	EventOrderCreated        OutboxEventType = "order_created"
	EventOrderStatusChanged  OutboxEventType = "order_status_changed"
	EventOrderCharged        OutboxEventType = "order_charged"
	EventOrderSettled        OutboxEventType = "order_settled"
	EventOrderCanceled       OutboxEventType = "order_canceled"
	EventReturnScheduled     OutboxEventType = "return_scheduled"
	EventDeliveryRecovered   OutboxEventType = "delivery_recovered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQuoteRequested,
	EventQuoteReadyForReview,
	EventQuoteRejected,
	EventQuoteExpired,
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCharged,
	EventOrderSettled,
	EventOrderCanceled,
	EventReturnScheduled,
	EventDeliveryRecovered,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
