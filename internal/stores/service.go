package stores

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/config"
	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	pkgerrors "github.com/laundrylink/laundrylink-backend/pkg/errors"
	"github.com/laundrylink/laundrylink-backend/pkg/geo"
)

type storeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	NearbyStores(ctx context.Context, lat, lng, radius float64, unit geo.Unit, limit int) ([]storeWithDistance, error)
}

// Service exposes store operations.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error)
	Nearby(ctx context.Context, input NearbyInput) ([]NearbyStoreDTO, error)
}

// NearbyInput carries the discovery query. Radius falls back to the
// configured default when zero.
type NearbyInput struct {
	Lat    float64
	Lng    float64
	Radius float64
	Unit   geo.Unit
}

type service struct {
	repo storeRepository
	cfg  config.QuotesConfig
}

// NewService builds a store service with the provided repository.
func NewService(repo storeRepository, cfg config.QuotesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo, cfg: cfg}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading store")
	}
	return FromModel(store), nil
}

func (s *service) Nearby(ctx context.Context, input NearbyInput) ([]NearbyStoreDTO, error) {
	if math.IsNaN(input.Lat) || input.Lat < -90 || input.Lat > 90 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lat must be within [-90, 90]")
	}
	if math.IsNaN(input.Lng) || input.Lng < -180 || input.Lng > 180 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lng must be within [-180, 180]")
	}

	unit := input.Unit
	if unit == "" {
		unit = geo.UnitKilometers
	}
	if !unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown distance unit %q", input.Unit))
	}

	radius := input.Radius
	if radius <= 0 {
		radius = s.cfg.NearbyRadiusKM
		if unit == geo.UnitMiles {
			radius = radius * 0.621371
		}
	}

	rows, err := s.repo.NearbyStores(ctx, input.Lat, input.Lng, radius, unit, s.cfg.NearbyMaxStores)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "querying nearby stores")
	}

	out := make([]NearbyStoreDTO, 0, len(rows))
	for i := range rows {
		dto := FromModel(&rows[i].Store)
		out = append(out, NearbyStoreDTO{
			StoreDTO: *dto,
			Distance: math.Round(rows[i].Distance*10) / 10,
			Unit:     string(unit),
		})
	}
	return out, nil
}
