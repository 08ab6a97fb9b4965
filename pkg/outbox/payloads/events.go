package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// QuoteRequestedEvent is emitted when a customer submits a quote request.
type QuoteRequestedEvent struct {
	QuoteID     uuid.UUID         `json:"quote_id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	StoreID     uuid.UUID         `json:"store_id"`
	ServiceType enums.ServiceType `json:"service_type"`
	FeeCents    int64             `json:"fee_cents"`
	Expires     time.Time         `json:"expires"`
}

// QuoteReadyForReviewEvent tells the vendor a quote moved to pending.
type QuoteReadyForReviewEvent struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StoreID    uuid.UUID `json:"store_id"`
	Expires    time.Time `json:"expires"`
}

// QuoteRejectedEvent tells the customer a vendor declined.
type QuoteRejectedEvent struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StoreID    uuid.UUID `json:"store_id"`
	RejectedAt time.Time `json:"rejected_at"`
}

// QuoteExpiredEvent is emitted by the expiry sweep for each lapsed quote.
type QuoteExpiredEvent struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StoreID    uuid.UUID `json:"store_id"`
	ExpiredAt  time.Time `json:"expired_at"`
}

// OrderCreatedEvent signals an accepted quote became a billable order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderUUID   uuid.UUID         `json:"order_uuid"`
	QuoteID     uuid.UUID         `json:"quote_id"`
	CustomerID  uuid.UUID         `json:"customer_id"`
	StoreID     uuid.UUID         `json:"store_id"`
	Status      enums.OrderStatus `json:"status"`
	DeliveryUID string            `json:"delivery_uid"`
}

// OrderStatusChangedEvent mirrors courier-driven order transitions.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	CustomerID uuid.UUID         `json:"customer_id"`
	StoreID    uuid.UUID         `json:"store_id"`
	From       enums.OrderStatus `json:"from"`
	To         enums.OrderStatus `json:"to"`
	ChangedAt  time.Time         `json:"changed_at"`
}

// OrderChargedEvent is emitted once the off-session charge succeeds.
type OrderChargedEvent struct {
	OrderID            uuid.UUID       `json:"order_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	StoreID            uuid.UUID       `json:"store_id"`
	WeightInPounds     decimal.Decimal `json:"weight_in_pounds"`
	ServiceChargeCents int             `json:"service_charge_cents"`
	FinalTotalCents    int             `json:"final_total_cents"`
	PaymentIntentID    string          `json:"payment_intent_id"`
}

// OrderSettledEvent marks the payment reconciled after completion.
type OrderSettledEvent struct {
	OrderID         uuid.UUID `json:"order_id"`
	CustomerID      uuid.UUID `json:"customer_id"`
	StoreID         uuid.UUID `json:"store_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	SettledAt       time.Time `json:"settled_at"`
}

// OrderCanceledEvent is emitted whenever an order reaches canceled.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	StoreID    uuid.UUID `json:"store_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}

// ReturnScheduledEvent reports the full-service return leg was booked.
type ReturnScheduledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
	StoreID     uuid.UUID `json:"store_id"`
	DeliveryUID string    `json:"delivery_uid"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// DeliveryRecoveredEvent reports an orphaned courier delivery was re-linked
// by the reconcile sweep.
type DeliveryRecoveredEvent struct {
	DeliveryID     uuid.UUID `json:"delivery_id"`
	DeliveryUID    string    `json:"delivery_uid"`
	QuoteID        uuid.UUID `json:"quote_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	RecoveredAt    time.Time `json:"recovered_at"`
}
