package models

import (
	"time"

	"github.com/google/uuid"
)

// Store represents a vendor laundromat location.
type Store struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID            uuid.UUID `gorm:"column:owner;type:uuid;not null;index"`
	Name               string    `gorm:"column:name;not null"`
	Phone              *string   `gorm:"column:phone"`
	Address            string    `gorm:"column:address;not null"`
	Lat                float64   `gorm:"column:lat;not null"`
	Lng                float64   `gorm:"column:lng;not null"`
	PricePerPoundCents int       `gorm:"column:price_per_pound_cents;not null;default:0"`
	Active             bool      `gorm:"column:active;not null;default:true"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
