package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// DeliveryQuote is the vendor-reviewable offer produced by the courier
// network for a customer's laundry run. QuoteID holds the courier-side
// identifier; SecondQuoteID carries the return leg for full service.
type DeliveryQuote struct {
	ID            uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ServiceType   enums.ServiceType `gorm:"column:service_type;type:service_type;not null"`
	Status        enums.QuoteStatus `gorm:"column:status;type:quote_status;not null;default:'pending'"`
	QuoteID       *string           `gorm:"column:quote_id;uniqueIndex"`
	SecondQuoteID *string           `gorm:"column:second_quote_id"`

	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;index"`
	StoreID    uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`

	PickupAddress string   `gorm:"column:pickup_address;not null"`
	PickupLat     *float64 `gorm:"column:pickup_lat"`
	PickupLng     *float64 `gorm:"column:pickup_lng"`
	PickupPhone   string   `gorm:"column:pickup_phone;not null"`

	DropoffAddress string   `gorm:"column:dropoff_address;not null"`
	DropoffLat     *float64 `gorm:"column:dropoff_lat"`
	DropoffLng     *float64 `gorm:"column:dropoff_lng"`
	DropoffPhone   string   `gorm:"column:dropoff_phone;not null"`

	ManifestTotalValue decimal.Decimal `gorm:"column:manifest_total_value;type:numeric(12,2);not null"`
	Fee                decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null"`
	Currency           enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	DurationMinutes    *int            `gorm:"column:duration_minutes"`
	PickupDuration     *int            `gorm:"column:pickup_duration_minutes"`
	DropoffETA         *time.Time      `gorm:"column:dropoff_eta"`
	DropoffDeadline    *time.Time      `gorm:"column:dropoff_deadline"`

	PaymentMethodID *string   `gorm:"column:payment_method_id"`
	Expires         time.Time `gorm:"column:expires;not null;index"`
	SavedAt         time.Time `gorm:"column:saved_at;autoCreateTime"`

	ManifestItems []ManifestItem `gorm:"foreignKey:DeliveryQuoteID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
