package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// Actor identifies who is calling an order operation. StoreID is nil for
// customers.
type Actor struct {
	UserID  uuid.UUID
	StoreID *uuid.UUID
	Role    enums.UserRole
}

// WeighInput carries the vendor's recorded weight for an order.
type WeighInput struct {
	OrderUUID      uuid.UUID
	WeightInPounds decimal.Decimal
}

// CourierUpdateInput is a parsed delivery-status webhook event.
type CourierUpdateInput struct {
	DeliveryUID     string
	Status          enums.DeliveryStatus
	CourierName     *string
	CourierPhone    *string
	CourierVehicle  *string
	CourierImminent bool
	TrackingURL     *string
	PickupETA       *time.Time
	DropoffETA      *time.Time
	OccurredAt      time.Time
}

// DeliveryDTO is the API view of one courier leg.
type DeliveryDTO struct {
	ID          uuid.UUID            `json:"id"`
	DeliveryUID *string              `json:"delivery_uid,omitempty"`
	Status      enums.DeliveryStatus `json:"status"`
	Fee         decimal.Decimal      `json:"fee"`
	Currency    enums.Currency       `json:"currency"`
	TrackingURL *string              `json:"tracking_url,omitempty"`
	CourierName *string              `json:"courier_name,omitempty"`
	PickupETA   *time.Time           `json:"pickup_eta,omitempty"`
	DropoffETA  *time.Time           `json:"dropoff_eta,omitempty"`
}

// OrderDTO is the API view of an order.
type OrderDTO struct {
	ID                 uuid.UUID         `json:"id"`
	UUID               uuid.UUID         `json:"uuid"`
	Status             enums.OrderStatus `json:"status"`
	StoreID            uuid.UUID         `json:"store_id"`
	PickupAddress      string            `json:"pickup_address"`
	DropoffAddress     string            `json:"dropoff_address"`
	WeightInPounds     *decimal.Decimal  `json:"weight_in_pounds,omitempty"`
	ServiceChargeCents *int              `json:"service_charge_cents,omitempty"`
	DeliveryFeeCents   *int              `json:"delivery_fee_cents,omitempty"`
	FinalTotalCents    *int              `json:"final_total_cents,omitempty"`
	CustomerNote       *string           `json:"customer_note,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// OrderFromModel converts a persisted order into its API view.
func OrderFromModel(m *models.Order) *OrderDTO {
	return &OrderDTO{
		ID:                 m.ID,
		UUID:               m.UUID,
		Status:             m.Status,
		StoreID:            m.StoreID,
		PickupAddress:      m.PickupAddress,
		DropoffAddress:     m.DropoffAddress,
		WeightInPounds:     m.WeightInPounds,
		ServiceChargeCents: m.ServiceChargeCents,
		DeliveryFeeCents:   m.DeliveryFeeCents,
		FinalTotalCents:    m.FinalTotalCents,
		CustomerNote:       m.CustomerNote,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// DeliveryFromModel converts a persisted delivery into its API view.
func DeliveryFromModel(m *models.Delivery) *DeliveryDTO {
	return &DeliveryDTO{
		ID:          m.ID,
		DeliveryUID: m.DeliveryUID,
		Status:      m.Status,
		Fee:         m.Fee,
		Currency:    m.Currency,
		TrackingURL: m.TrackingURL,
		CourierName: m.CourierName,
		PickupETA:   m.PickupETA,
		DropoffETA:  m.DropoffETA,
	}
}
