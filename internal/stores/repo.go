package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/geo"
)

// Repository handles store persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// storeWithDistance carries the computed distance column alongside the row.
type storeWithDistance struct {
	models.Store
	Distance float64 `gorm:"column:distance"`
}

// Create persists a new store row.
func (r *Repository) Create(ctx context.Context, store *models.Store) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	return r.db.WithContext(ctx).Create(store).Error
}

// FindByID loads a store by its UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// FindByOwner returns all stores owned by the provided user.
func (r *Repository) FindByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	var stores []models.Store
	if err := r.db.WithContext(ctx).Where("owner = ?", ownerID).Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

// NearbyStores returns active stores within radius of the point, closest
// first. Distance is computed DB-side so ordering and filtering stay in SQL.
func (r *Repository) NearbyStores(ctx context.Context, lat, lng, radius float64, unit geo.Unit, limit int) ([]storeWithDistance, error) {
	expr, args := geo.DistanceSQL(lat, lng, unit)

	var rows []storeWithDistance
	q := r.db.WithContext(ctx).
		Model(&models.Store{}).
		Select("stores.*, "+expr+" AS distance", args...).
		Where("active = ?", true).
		Where(expr+" <= ?", append(args, radius)...).
		Order("distance ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Update saves the provided store.
func (r *Repository) Update(ctx context.Context, store *models.Store) error {
	if store == nil {
		return fmt.Errorf("store is required")
	}
	return r.db.WithContext(ctx).Save(store).Error
}

// FindByIDWithTx loads a store using the provided transaction.
func (r *Repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Store, error) {
	if tx == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	var store models.Store
	if err := tx.First(&store, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &store, nil
}
