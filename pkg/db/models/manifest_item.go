package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
	"github.com/laundrylink/laundrylink-backend/pkg/types"
)

// ManifestItem is one line of a laundry manifest. Exactly one of the owner
// references is set at a time (DB CHECK); ownership moves from quote to
// delivery when the quote is accepted.
type ManifestItem struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`

	DeliveryQuoteID *uuid.UUID `gorm:"column:delivery_quote_id;type:uuid;index"`
	DeliveryID      *uuid.UUID `gorm:"column:delivery_id;type:uuid;index"`
	OrderID         *uuid.UUID `gorm:"column:order_id;type:uuid;index"`

	Name          string             `gorm:"column:name;not null"`
	Quantity      int                `gorm:"column:quantity;not null;default:1"`
	Size          enums.ManifestSize `gorm:"column:size;type:manifest_size;not null;default:'small'"`
	Dimensions    *types.Dimensions  `gorm:"column:dimensions;type:jsonb"`
	Weight        *decimal.Decimal   `gorm:"column:weight;type:numeric(8,2)"`
	Price         decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	VATPercentage *decimal.Decimal   `gorm:"column:vat_percentage;type:numeric(5,2)"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
