package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/laundrylink/laundrylink-backend/pkg/db/models"
	"github.com/laundrylink/laundrylink-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("ManifestItems").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByUUID(ctx context.Context, externalUUID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("ManifestItems").
		First(&order, "uuid = ?", externalUUID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderByUUIDForUpdate(ctx context.Context, externalUUID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "uuid = ?", externalUUID).Error; err != nil {
		return nil, err
	}
	// manifest rows load outside the lock, they never change under us here
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", order.ID).
		Find(&order.ManifestItems).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("pickup_delivery_id = ? OR return_delivery_id = ?", deliveryID, deliveryID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Omit("ManifestItems").
		Save(order).Error
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

func (r *repository) CreateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).Create(delivery).Error
}

func (r *repository) FindDeliveryByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).
		First(&delivery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindDeliveryByUID(ctx context.Context, deliveryUID string) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).
		First(&delivery, "delivery_uid = ?", deliveryUID).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindDeliveryByUIDForUpdate(ctx context.Context, deliveryUID string) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&delivery, "delivery_uid = ?", deliveryUID).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindDeliveryByIdempotencyKey(ctx context.Context, key string) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.WithContext(ctx).
		First(&delivery, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) UpdateDelivery(ctx context.Context, delivery *models.Delivery) error {
	return r.db.WithContext(ctx).
		Omit("ManifestItems").
		Save(delivery).Error
}

// ReassignManifestToDelivery moves the quote's manifest rows onto the pickup
// delivery, keeping the single-owner CHECK satisfied.
func (r *repository) ReassignManifestToDelivery(ctx context.Context, quoteID, deliveryID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.ManifestItem{}).
		Where("delivery_quote_id = ?", quoteID).
		Updates(map[string]any{
			"delivery_quote_id": nil,
			"delivery_id":       deliveryID,
		}).Error
}

func (r *repository) MarkQuoteAccepted(ctx context.Context, quoteID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryQuote{}).
		Where("id = ?", quoteID).
		UpdateColumn("status", enums.QuoteStatusAccepted).Error
}

func (r *repository) CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *repository) ResolveAttempt(ctx context.Context, idempotencyKey string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.DeliveryAttempt{}).
		Where("idempotency_key = ? AND resolved_at IS NULL", idempotencyKey).
		UpdateColumn("resolved_at", at).Error
}

func (r *repository) FindUnresolvedAttemptsBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	q := r.db.WithContext(ctx).
		Where("resolved_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
