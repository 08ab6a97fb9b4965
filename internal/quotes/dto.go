package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	"github.com/laundrylink/laundrylink-backend/pkg/types"
)

// ManifestItemInput is one laundry manifest line on a quote request.
type ManifestItemInput struct {
	Name          string             `json:"name" validate:"required"`
	Quantity      int                `json:"quantity" validate:"required,min=1"`
	Size          enums.ManifestSize `json:"size" validate:"required"`
	Dimensions    *types.Dimensions  `json:"dimensions,omitempty"`
	Weight        *decimal.Decimal   `json:"weight,omitempty"`
	Price         decimal.Decimal    `json:"price"`
	VATPercentage *decimal.Decimal   `json:"vat_percentage,omitempty"`
}

// RequestQuoteInput is the customer-facing quote request.
type RequestQuoteInput struct {
	CustomerID     uuid.UUID
	StoreID        uuid.UUID           `json:"store_id" validate:"required"`
	ServiceType    enums.ServiceType   `json:"service_type" validate:"required"`
	PickupAddress  string              `json:"pickup_address" validate:"required"`
	PickupLat      *float64            `json:"pickup_lat,omitempty"`
	PickupLng      *float64            `json:"pickup_lng,omitempty"`
	PickupPhone    string              `json:"pickup_phone" validate:"required,e164"`
	DropoffAddress string              `json:"dropoff_address" validate:"required"`
	DropoffLat     *float64            `json:"dropoff_lat,omitempty"`
	DropoffLng     *float64            `json:"dropoff_lng,omitempty"`
	DropoffPhone   string              `json:"dropoff_phone" validate:"required,e164"`
	ManifestItems  []ManifestItemInput `json:"manifest_items" validate:"required,min=1,dive"`
}

// ManifestItemDTO mirrors a persisted manifest line.
type ManifestItemDTO struct {
	ID            uuid.UUID          `json:"id"`
	Name          string             `json:"name"`
	Quantity      int                `json:"quantity"`
	Size          enums.ManifestSize `json:"size"`
	Dimensions    *types.Dimensions  `json:"dimensions,omitempty"`
	Weight        *decimal.Decimal   `json:"weight,omitempty"`
	Price         decimal.Decimal    `json:"price"`
	VATPercentage *decimal.Decimal   `json:"vat_percentage,omitempty"`
}

// QuoteDTO is the API representation of a delivery quote.
type QuoteDTO struct {
	ID              uuid.UUID         `json:"id"`
	ServiceType     enums.ServiceType `json:"service_type"`
	Status          enums.QuoteStatus `json:"status"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	StoreID         uuid.UUID         `json:"store_id"`
	PickupAddress   string            `json:"pickup_address"`
	DropoffAddress  string            `json:"dropoff_address"`
	Fee             decimal.Decimal   `json:"fee"`
	Currency        enums.Currency    `json:"currency"`
	DurationMinutes *int              `json:"duration_minutes,omitempty"`
	DropoffETA      *time.Time        `json:"dropoff_eta,omitempty"`
	Expires         time.Time         `json:"expires"`
	PaymentMethodID *string           `json:"payment_method_id,omitempty"`
	ManifestItems   []ManifestItemDTO `json:"manifest_items"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RequestQuoteResult is the quote plus, when card setup is still needed, the
// hosted checkout URL the customer must complete first.
type RequestQuoteResult struct {
	Quote       *QuoteDTO `json:"quote"`
	CheckoutURL *string   `json:"checkout_url,omitempty"`
}

// FromModel maps the persisted quote into a DTO.
func FromModel(m *models.DeliveryQuote) *QuoteDTO {
	if m == nil {
		return nil
	}
	items := make([]ManifestItemDTO, 0, len(m.ManifestItems))
	for _, item := range m.ManifestItems {
		items = append(items, ManifestItemDTO{
			ID:            item.ID,
			Name:          item.Name,
			Quantity:      item.Quantity,
			Size:          item.Size,
			Dimensions:    item.Dimensions,
			Weight:        item.Weight,
			Price:         item.Price,
			VATPercentage: item.VATPercentage,
		})
	}
	return &QuoteDTO{
		ID:              m.ID,
		ServiceType:     m.ServiceType,
		Status:          m.Status,
		CustomerID:      m.CustomerID,
		StoreID:         m.StoreID,
		PickupAddress:   m.PickupAddress,
		DropoffAddress:  m.DropoffAddress,
		Fee:             m.Fee,
		Currency:        m.Currency,
		DurationMinutes: m.DurationMinutes,
		DropoffETA:      m.DropoffETA,
		Expires:         m.Expires,
		PaymentMethodID: m.PaymentMethodID,
		ManifestItems:   items,
		CreatedAt:       m.CreatedAt,
	}
}
