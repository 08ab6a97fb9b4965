package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// Delivery is one courier leg. DeliveryUID is the courier-side identifier
// and stays nil until the courier confirms creation; IdempotencyKey is what
// makes retried creation calls collapse onto one courier delivery.
type Delivery struct {
	ID          uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DeliveryUID *string              `gorm:"column:delivery_uid;uniqueIndex"`
	QuoteID     *uuid.UUID           `gorm:"column:quote_id;type:uuid;uniqueIndex"`
	ParentID    *uuid.UUID           `gorm:"column:parent_delivery_id;type:uuid"`
	Status      enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'pending'"`

	PickupName     string   `gorm:"column:pickup_name;not null"`
	PickupAddress  string   `gorm:"column:pickup_address;not null"`
	PickupPhone    string   `gorm:"column:pickup_phone;not null"`
	PickupLat      *float64 `gorm:"column:pickup_lat"`
	PickupLng      *float64 `gorm:"column:pickup_lng"`
	DropoffName    string   `gorm:"column:dropoff_name;not null"`
	DropoffAddress string   `gorm:"column:dropoff_address;not null"`
	DropoffPhone   string   `gorm:"column:dropoff_phone;not null"`
	DropoffLat     *float64 `gorm:"column:dropoff_lat"`
	DropoffLng     *float64 `gorm:"column:dropoff_lng"`

	Fee      decimal.Decimal `gorm:"column:fee;type:numeric(12,2);not null"`
	Currency enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`

	TrackingURL     *string `gorm:"column:tracking_url"`
	CourierName     *string `gorm:"column:courier_name"`
	CourierPhone    *string `gorm:"column:courier_phone"`
	CourierVehicle  *string `gorm:"column:courier_vehicle"`
	CourierImminent bool    `gorm:"column:courier_imminent;not null;default:false"`

	IdempotencyKey string          `gorm:"column:idempotency_key;not null;uniqueIndex"`
	RawResponse    json.RawMessage `gorm:"column:raw_response;type:jsonb"`

	PickupETA        *time.Time `gorm:"column:pickup_eta"`
	DropoffETA       *time.Time `gorm:"column:dropoff_eta"`
	CourierUpdatedAt *time.Time `gorm:"column:courier_updated_at"`

	ManifestItems []ManifestItem `gorm:"foreignKey:DeliveryID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
