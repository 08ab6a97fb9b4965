package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// UserDTO is the transport shape that omits gateway references.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FullName    string         `json:"full_name"`
	PhoneNumber *string        `json:"phone_number,omitempty"`
	Role        enums.UserRole `json:"role"`
	Lat         *float64       `json:"lat,omitempty"`
	Lng         *float64       `json:"lng,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email       string
	FullName    string
	PhoneNumber *string
	Role        enums.UserRole
	Lat         *float64
	Lng         *float64
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FullName:    u.FullName,
		PhoneNumber: u.PhoneNumber,
		Role:        u.Role,
		Lat:         u.Lat,
		Lng:         u.Lng,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	role := c.Role
	if role == "" {
		role = enums.UserRoleCustomer
	}

	return &models.User{
		Email:       c.Email,
		FullName:    c.FullName,
		PhoneNumber: c.PhoneNumber,
		Role:        role,
		Lat:         c.Lat,
		Lng:         c.Lng,
	}
}
