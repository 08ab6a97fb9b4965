package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

// Repository defines persistence operations for delivery quotes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.DeliveryQuote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error
	SetPaymentMethod(ctx context.Context, id uuid.UUID, paymentMethodID string, status enums.QuoteStatus) error
	FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryQuote, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, quote *models.DeliveryQuote) error {
	return r.db.WithContext(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	var quote models.DeliveryQuote
	if err := r.db.WithContext(ctx).
		Preload("ManifestItems").
		First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

// FindByIDForUpdate locks the quote row so concurrent decisions serialize.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.DeliveryQuote, error) {
	var quote models.DeliveryQuote
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("delivery_quote_id = ?", id).
		Find(&quote.ManifestItems).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.QuoteStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryQuote{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

func (r *repository) SetPaymentMethod(ctx context.Context, id uuid.UUID, paymentMethodID string, status enums.QuoteStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryQuote{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"payment_method_id": paymentMethodID,
			"status":            status,
		}).Error
}

func (r *repository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryQuote, error) {
	var quotes []models.DeliveryQuote
	q := r.db.WithContext(ctx).
		Where("status = ?", enums.QuoteStatusPending).
		Where("expires < ?", cutoff).
		Order("expires ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}
