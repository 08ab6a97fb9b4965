package stores

import (
	"time"

	"github.com/google/uuid"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
)

// StoreDTO exposes safe store data in API responses.
type StoreDTO struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Phone              *string   `json:"phone,omitempty"`
	Address            string    `json:"address"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	PricePerPoundCents int       `json:"price_per_pound_cents"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NearbyStoreDTO augments the store with its distance from the query point.
type NearbyStoreDTO struct {
	StoreDTO
	Distance float64 `json:"distance"`
	Unit     string  `json:"unit"`
}

// FromModel maps the persisted store into a DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:                 m.ID,
		Name:               m.Name,
		Phone:              m.Phone,
		Address:            m.Address,
		Lat:                m.Lat,
		Lng:                m.Lng,
		PricePerPoundCents: m.PricePerPoundCents,
		Active:             m.Active,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}
