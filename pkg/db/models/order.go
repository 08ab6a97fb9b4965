package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// Order is the billable record anchoring quote, deliveries and payment.
// UUID is the external-facing identifier handed to customers.
type Order struct {
	ID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UUID uuid.UUID `gorm:"column:uuid;type:uuid;not null;uniqueIndex"`

	UserID  uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID uuid.UUID         `gorm:"column:store_id;type:uuid;not null;index"`
	Status  enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending_setup'"`

	PickupAddress  string   `gorm:"column:pickup_address;not null"`
	PickupLat      *float64 `gorm:"column:pickup_lat"`
	PickupLng      *float64 `gorm:"column:pickup_lng"`
	DropoffAddress string   `gorm:"column:dropoff_address;not null"`
	DropoffLat     *float64 `gorm:"column:dropoff_lat"`
	DropoffLng     *float64 `gorm:"column:dropoff_lng"`

	WeightInPounds     *decimal.Decimal `gorm:"column:weight_in_pounds;type:numeric(8,2)"`
	ServiceChargeCents *int             `gorm:"column:service_charge_cents"`
	DeliveryFeeCents   *int             `gorm:"column:delivery_fee_cents"`
	FinalTotalCents    *int             `gorm:"column:final_total_cents"`

	StripeCustomerID      *string `gorm:"column:stripe_customer_id"`
	StripePaymentMethodID *string `gorm:"column:stripe_payment_method_id"`
	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id"`

	PickupDeliveryID *uuid.UUID `gorm:"column:pickup_delivery_id;type:uuid"`
	ReturnDeliveryID *uuid.UUID `gorm:"column:return_delivery_id;type:uuid"`

	CustomerNote *string `gorm:"column:customer_note"`

	ManifestItems []ManifestItem `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
