package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string         `gorm:"type:text;not null;uniqueIndex"`
	FullName         string         `gorm:"column:full_name;not null"`
	PhoneNumber      *string        `gorm:"column:phone_number"`
	Role             enums.UserRole `gorm:"column:role;type:user_role;not null;default:'customer'"`
	StripeCustomerID *string        `gorm:"column:stripe_customer_id;uniqueIndex"`
	Lat              *float64       `gorm:"column:lat"`
	Lng              *float64       `gorm:"column:lng"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
